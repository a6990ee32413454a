package cgroup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetMemoryLimitExactContent(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, "abcd1234")
	if err := m.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.SetMemoryLimit(104857600); err != nil {
		t.Fatalf("SetMemoryLimit: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "jcontainer", "abcd1234", "memory.max"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "104857600\n" {
		t.Errorf("got %q, want %q", got, "104857600\n")
	}
}

func TestSetCPULimitExactContent(t *testing.T) {
	cases := []struct {
		percent int
		want    string
	}{
		{100, "100000 100000\n"},
		{200, "200000 100000\n"},
		{50, "50000 100000\n"},
	}

	for _, tc := range cases {
		root := t.TempDir()
		m := NewManager(root, "xyz")
		if err := m.Create(); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := m.SetCPULimit(tc.percent); err != nil {
			t.Fatalf("SetCPULimit(%d): %v", tc.percent, err)
		}

		got, err := os.ReadFile(filepath.Join(root, "jcontainer", "xyz", "cpu.max"))
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if string(got) != tc.want {
			t.Errorf("percent=%d: got %q, want %q", tc.percent, got, tc.want)
		}
	}
}

func TestCreateIdempotentSubtreeControl(t *testing.T) {
	root := t.TempDir()
	m1 := NewManager(root, "one")
	m2 := NewManager(root, "two")

	if err := m1.Create(); err != nil {
		t.Fatalf("m1.Create: %v", err)
	}
	if err := m2.Create(); err != nil {
		t.Fatalf("m2.Create (shared parent already configured): %v", err)
	}
}

func TestCloseRemovesEmptyParent(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, "solo")
	if err := m.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	m.Close()

	if _, err := os.Stat(filepath.Join(root, "jcontainer", "solo")); !os.IsNotExist(err) {
		t.Errorf("expected container group removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "jcontainer")); !os.IsNotExist(err) {
		t.Errorf("expected empty parent group removed, stat err = %v", err)
	}
}

func TestCloseLeavesNonEmptyParent(t *testing.T) {
	root := t.TempDir()
	m1 := NewManager(root, "one")
	m2 := NewManager(root, "two")
	if err := m1.Create(); err != nil {
		t.Fatal(err)
	}
	if err := m2.Create(); err != nil {
		t.Fatal(err)
	}

	m1.Close()

	if _, err := os.Stat(filepath.Join(root, "jcontainer")); err != nil {
		t.Errorf("expected parent group to remain (two still present): %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "jcontainer", "two")); err != nil {
		t.Errorf("expected two's group to remain: %v", err)
	}
}
