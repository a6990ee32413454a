// Package lifecycle implements the user-facing container lifecycle
// operations that act on already-registered containers: list, stop, logs,
// and rm. The parent run path lives in runlauncher.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jcontainer/jcontainer/containerstate"
)

// stopPollInterval and stopTimeout govern how long Stop waits for a SIGTERM'd
// process to exit before escalating to SIGKILL.
const (
	stopPollInterval = 100 * time.Millisecond
	stopTimeout      = 10 * time.Second
)

// Controller performs lifecycle operations against a Registry.
type Controller struct {
	Registry *containerstate.Registry
}

// NewController returns a Controller backed by reg.
func NewController(reg *containerstate.Registry) *Controller {
	return &Controller{Registry: reg}
}

// List writes a tabular rendering of every registered container to w.
func (c *Controller) List(w io.Writer) error {
	states, err := c.Registry.ListAll()
	if err != nil {
		return fmt.Errorf("lifecycle-error: listing containers: %w", err)
	}
	if len(states) == 0 {
		fmt.Fprintln(w, "No containers found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPID\tIMAGE\tSTATUS\tSTART TIME")
	for _, s := range states {
		image := "-"
		if s.Image != nil {
			image = *s.Image
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", s.ID, s.PID, image, renderStatus(s), s.StartTime)
	}
	return tw.Flush()
}

func renderStatus(s containerstate.State) string {
	switch s.Status {
	case containerstate.StatusExited:
		code := 0
		if s.ExitCode != nil {
			code = *s.ExitCode
		}
		return fmt.Sprintf("exited(%d)", code)
	default:
		return string(s.Status)
	}
}

// Stop sends SIGTERM to the container's process, polls for exit up to
// stopTimeout, and escalates to SIGKILL if it hasn't exited by then. If the
// container is not running, it writes "not running" to w and returns without
// touching the registry. If it's marked running but its PID is already dead,
// it is transitioned straight to exited with no exit code.
func (c *Controller) Stop(ctx context.Context, w io.Writer, id string) error {
	state, err := c.Registry.Get(id)
	if err != nil {
		return err
	}
	if state.Status != containerstate.StatusRunning {
		fmt.Fprintln(w, "not running")
		return nil
	}
	if !pidAlive(state.PID) {
		return c.Registry.UpdateStatus(id, containerstate.StatusExited, nil)
	}

	proc, err := os.FindProcess(state.PID)
	if err != nil {
		return fmt.Errorf("lifecycle-error: finding process %d: %w", state.PID, err)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Warn("lifecycle.Stop: SIGTERM failed", "id", id, "pid", state.PID, "error", err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if !pidAlive(state.PID) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(stopPollInterval):
		}
	}

	if pidAlive(state.PID) {
		slog.Warn("lifecycle.Stop: escalating to SIGKILL", "id", id, "pid", state.PID)
		_ = proc.Signal(syscall.SIGKILL)
	}

	return c.Registry.UpdateStatus(id, containerstate.StatusStopped, nil)
}

// Logs writes the container's stdout.log to stdout and stderr.log to
// stderr, or a placeholder message to stdout if neither file exists.
func (c *Controller) Logs(stdout, stderr io.Writer, id string) error {
	if _, err := c.Registry.Get(id); err != nil {
		return err
	}

	stdoutPath, stderrPath := c.Registry.LogPaths(id)
	wroteAny := false

	if data, err := os.ReadFile(stdoutPath); err == nil {
		stdout.Write(data)
		wroteAny = true
	}
	if data, err := os.ReadFile(stderrPath); err == nil {
		stderr.Write(data)
		wroteAny = true
	}

	if !wroteAny {
		fmt.Fprintln(stdout, "No logs available.")
	}
	return nil
}

// Remove deletes a container's state. The caller is responsible for any
// interactive confirmation prompt.
func (c *Controller) Remove(id string) error {
	return c.Registry.Remove(id)
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
