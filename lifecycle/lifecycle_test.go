package lifecycle

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jcontainer/jcontainer/containerstate"
)

func TestListEmptyPrintsMessage(t *testing.T) {
	reg := containerstate.NewRegistry(t.TempDir())
	c := NewController(reg)

	var buf bytes.Buffer
	if err := c.List(&buf); err != nil {
		t.Fatalf("List: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No containers found." {
		t.Errorf("got %q", buf.String())
	}
}

func TestListRendersExitCode(t *testing.T) {
	reg := containerstate.NewRegistry(t.TempDir())
	code := 1
	img := "alpine:latest"
	if err := reg.Register(containerstate.State{
		ID:       "abc12345",
		PID:      999999999,
		Image:    &img,
		Command:  []string{"false"},
		Status:   containerstate.StatusExited,
		ExitCode: &code,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	c := NewController(reg)
	var buf bytes.Buffer
	if err := c.List(&buf); err != nil {
		t.Fatalf("List: %v", err)
	}
	if !strings.Contains(buf.String(), "exited(1)") {
		t.Errorf("output missing exited(1): %q", buf.String())
	}
}

func TestStopAlreadyExitedPrintsNotRunning(t *testing.T) {
	reg := containerstate.NewRegistry(t.TempDir())
	if err := reg.Register(containerstate.State{ID: "done0001", PID: 999999999, Status: containerstate.StatusExited}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	c := NewController(reg)
	var buf bytes.Buffer
	if err := c.Stop(context.Background(), &buf, "done0001"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "not running" {
		t.Errorf("got %q", buf.String())
	}

	got, err := reg.Get("done0001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != containerstate.StatusExited {
		t.Errorf("Status = %q, want unchanged %q", got.Status, containerstate.StatusExited)
	}
}

func TestStopRunningWithDeadPIDReconciledByGetPrintsNotRunning(t *testing.T) {
	// Registry.Get already reconciles status=running with a dead PID down to
	// exited (spec.md §4.7), so by the time Stop inspects the state it's
	// already exited and takes the "not running" path; Stop's own dead-PID
	// check is a defensive backstop for registries that don't reconcile on
	// read.
	reg := containerstate.NewRegistry(t.TempDir())
	if err := reg.Register(containerstate.State{ID: "zombie01", PID: 999999999, Status: containerstate.StatusRunning}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	c := NewController(reg)
	var buf bytes.Buffer
	if err := c.Stop(context.Background(), &buf, "zombie01"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "not running" {
		t.Errorf("got %q", buf.String())
	}

	got, err := reg.Get("zombie01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != containerstate.StatusExited {
		t.Errorf("Status = %q, want %q", got.Status, containerstate.StatusExited)
	}
	if got.ExitCode != nil {
		t.Errorf("ExitCode = %v, want nil", got.ExitCode)
	}
}

func TestLogsNoFilesPrintsPlaceholder(t *testing.T) {
	reg := containerstate.NewRegistry(t.TempDir())
	if err := reg.Register(containerstate.State{ID: "nolog001", PID: 999999999, Status: containerstate.StatusExited}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	c := NewController(reg)
	var stdout, stderr bytes.Buffer
	if err := c.Logs(&stdout, &stderr, "nolog001"); err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "No logs available." {
		t.Errorf("got %q", stdout.String())
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr = %q, want empty", stderr.String())
	}
}

func TestLogsReadsStdoutAndStderr(t *testing.T) {
	root := t.TempDir()
	reg := containerstate.NewRegistry(root)
	if err := reg.Register(containerstate.State{ID: "haslog01", PID: 999999999, Status: containerstate.StatusExited}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	stdoutPath, stderrPath := reg.LogPaths("haslog01")
	if err := os.WriteFile(stdoutPath, []byte("hello stdout\n"), 0o644); err != nil {
		t.Fatalf("WriteFile stdout: %v", err)
	}
	if err := os.WriteFile(stderrPath, []byte("hello stderr\n"), 0o644); err != nil {
		t.Fatalf("WriteFile stderr: %v", err)
	}

	c := NewController(reg)
	var stdout, stderr bytes.Buffer
	if err := c.Logs(&stdout, &stderr, "haslog01"); err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if !strings.Contains(stdout.String(), "hello stdout") {
		t.Errorf("stdout = %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "hello stderr") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRemoveDelegatesToRegistry(t *testing.T) {
	reg := containerstate.NewRegistry(t.TempDir())
	if err := reg.Register(containerstate.State{ID: "rm000001", PID: 999999999, Status: containerstate.StatusExited}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	c := NewController(reg)
	if err := c.Remove("rm000001"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := reg.Get("rm000001"); err != containerstate.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRemoveRunningFails(t *testing.T) {
	reg := containerstate.NewRegistry(t.TempDir())
	if err := reg.Register(containerstate.State{ID: "run00001", PID: os.Getpid(), Status: containerstate.StatusRunning}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	c := NewController(reg)
	if err := c.Remove("run00001"); err != containerstate.ErrStillRunning {
		t.Errorf("err = %v, want ErrStillRunning", err)
	}
}
