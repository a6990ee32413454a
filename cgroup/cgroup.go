// Package cgroup manages a per-container cgroup v2 subgroup: creation,
// controller enabling, memory/cpu limits, process attachment and teardown.
//
// Every write here targets an exact on-disk content format mandated by
// spec.md's testable properties (e.g. cpu.max must read
// "<quota> <period>\n" bit-for-bit), so this package talks to cgroupfs
// directly with os.WriteFile rather than through a cgroup management
// library — see DESIGN.md for the tradeoff against containerd/cgroups.
package cgroup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// DefaultRoot is the default cgroup v2 mount point.
	DefaultRoot = "/sys/fs/cgroup"
	parentGroup = "jcontainer"
	cpuPeriodUs = 100000
)

// Manager creates and tears down the cgroup v2 subgroup for one container.
type Manager struct {
	Root        string
	ContainerID string
}

// NewManager returns a Manager for containerID rooted at root (pass
// DefaultRoot in production).
func NewManager(root, containerID string) *Manager {
	return &Manager{Root: root, ContainerID: containerID}
}

func (m *Manager) parentDir() string {
	return filepath.Join(m.Root, parentGroup)
}

func (m *Manager) dir() string {
	return filepath.Join(m.parentDir(), m.ContainerID)
}

// Create makes the container's cgroup directory and enables the cpu/memory
// controllers on the shared jcontainer parent group. Enabling an
// already-enabled controller is treated as success, per spec.md §4.5 and
// §5's shared-resource guarantee.
func (m *Manager) Create() error {
	if err := os.MkdirAll(m.parentDir(), 0o755); err != nil {
		return fmt.Errorf("cgroup-error: creating parent group: %w", err)
	}
	if err := os.MkdirAll(m.dir(), 0o755); err != nil {
		return fmt.Errorf("cgroup-error: creating container group: %w", err)
	}

	subtreeControl := filepath.Join(m.parentDir(), "cgroup.subtree_control")
	if err := os.WriteFile(subtreeControl, []byte("+cpu +memory\n"), 0o644); err != nil {
		return fmt.Errorf("cgroup-error: enabling controllers: %w", err)
	}
	return nil
}

// SetMemoryLimit writes the container's memory.max file.
func (m *Manager) SetMemoryLimit(bytes uint64) error {
	path := filepath.Join(m.dir(), "memory.max")
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", bytes)), 0o644); err != nil {
		return fmt.Errorf("cgroup-error: setting memory.max: %w", err)
	}
	return nil
}

// SetCPULimit encodes percent as a cpu.max quota/period pair, where
// period is always 100000us and quota = percent * 1000us (so 100 = one
// core, 200 = two cores, 50 = half a core). percent is not clamped.
func (m *Manager) SetCPULimit(percent int) error {
	quota := percent * 1000
	path := filepath.Join(m.dir(), "cpu.max")
	content := fmt.Sprintf("%d %d\n", quota, cpuPeriodUs)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("cgroup-error: setting cpu.max: %w", err)
	}
	return nil
}

// AddProcess moves pid into the container's cgroup. Must be called after
// the target process has been spawned.
func (m *Manager) AddProcess(pid int) error {
	path := filepath.Join(m.dir(), "cgroup.procs")
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0o644); err != nil {
		return fmt.Errorf("cgroup-error: attaching pid %d: %w", pid, err)
	}
	return nil
}

// Close deletes the container's cgroup directory and, if the parent
// jcontainer group has no child groups left, deletes that too. Both deletes
// are best-effort and never return an error.
func (m *Manager) Close() {
	if err := os.Remove(m.dir()); err != nil {
		slog.Warn("cgroup.Close: could not remove container group", "dir", m.dir(), "error", err)
	}

	entries, err := os.ReadDir(m.parentDir())
	if err != nil {
		return
	}
	// The parent always holds interface files such as cgroup.subtree_control;
	// only subdirectories (other containers' groups) keep it alive.
	for _, e := range entries {
		if e.IsDir() {
			return
		}
	}
	if err := os.RemoveAll(m.parentDir()); err != nil {
		slog.Warn("cgroup.Close: could not remove empty parent group", "dir", m.parentDir(), "error", err)
	}
}
