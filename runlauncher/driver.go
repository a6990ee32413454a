// Package runlauncher implements the Parent Driver, Child Initializer, and
// Platform Strategy: the end-to-end orchestration of a `run` invocation and
// the counterpart logic that runs inside the child's namespaces.
package runlauncher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jcontainer/jcontainer/cgroup"
	"github.com/jcontainer/jcontainer/containerstate"
	"github.com/jcontainer/jcontainer/image"
	"github.com/jcontainer/jcontainer/imageref"
	"github.com/jcontainer/jcontainer/network"
	"github.com/jcontainer/jcontainer/platform"
)

const teeJoinTimeout = 5 * time.Second

// Config captures one `run` invocation's resolved configuration.
type Config struct {
	ImageRef   string
	Rootfs     string
	Command    []string
	Net        bool
	MemoryByte uint64 // 0 means unset
	CPUPercent int    // 0 means unset
}

// Driver orchestrates launching and supervising one container.
type Driver struct {
	Images     *image.Manager
	Registry   *containerstate.Registry
	CgroupRoot string
}

// NewDriver returns a Driver wired to the given cache and container-state
// base directories.
func NewDriver(cacheRoot, containersRoot string) *Driver {
	return &Driver{
		Images:     image.NewManager(cacheRoot),
		Registry:   containerstate.NewRegistry(containersRoot),
		CgroupRoot: cgroup.DefaultRoot,
	}
}

// Run executes the full Parent Driver sequence (§4.9) and returns the
// child's exit code.
func (d *Driver) Run(ctx context.Context, stdout, stderr io.Writer, cfg Config) (int, error) {
	rootfs := cfg.Rootfs
	var imageName *string
	if cfg.ImageRef != "" {
		ref, err := imageref.Parse(cfg.ImageRef)
		if err != nil {
			return 1, fmt.Errorf("config-error: parsing image reference: %w", err)
		}
		resolved, err := d.Images.Pull(ref)
		if err != nil {
			return 1, err
		}
		rootfs = resolved
		name := ref.FullName()
		imageName = &name
	}

	linux := IsLinux()
	if linux {
		if err := platform.New().Unshare(platform.CloneNewNS | platform.CloneNewUTS); err != nil {
			return 1, fmt.Errorf("runlauncher-error: unshare mount/uts namespaces: %w", err)
		}
	} else {
		fmt.Fprintln(stderr, "warning: running in degraded mode (chroot only, no PID/mount/network isolation)")
	}

	self, err := os.Executable()
	if err != nil {
		return 1, fmt.Errorf("runlauncher-error: resolving self path: %w", err)
	}
	argv := buildChildArgv(self, linux, cfg.Net, rootfs, cfg.Command)

	id, err := containerstate.NewID()
	if err != nil {
		return 1, fmt.Errorf("runlauncher-error: generating container id: %w", err)
	}

	var cg *cgroup.Manager
	if (cfg.MemoryByte > 0 || cfg.CPUPercent > 0) && linux {
		cg = cgroup.NewManager(d.CgroupRoot, id)
		if err := d.setupCgroup(cg, cfg); err != nil {
			slog.Warn("runlauncher.Run: cgroup setup failed, proceeding without limits", "error", err)
			cg.Close()
			cg = nil
		}
	}

	var net *network.Manager
	defer func() {
		if net != nil {
			net.Close(ctx)
		}
		if cg != nil {
			cg.Close()
		}
	}()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return 1, fmt.Errorf("runlauncher-error: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return 1, fmt.Errorf("runlauncher-error: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("runlauncher-error: starting child: %w", err)
	}
	pid := cmd.Process.Pid

	stdoutLog, stderrLog := d.Registry.LogPaths(id)
	state := containerstate.State{
		ID:        id,
		PID:       pid,
		StartTime: containerstate.Now(),
		Rootfs:    rootfs,
		Image:     imageName,
		Command:   cfg.Command,
		Status:    containerstate.StatusRunning,
	}
	if err := d.Registry.Register(state); err != nil {
		return 1, fmt.Errorf("runlauncher-error: registering container: %w", err)
	}
	fmt.Fprintf(stderr, "Container %s started (PID %d)\n", id, pid)

	var group errgroup.Group
	group.Go(func() error { return teeStream(stdoutPipe, stdoutLog, stdout) })
	group.Go(func() error { return teeStream(stderrPipe, stderrLog, stderr) })

	if cg != nil {
		if err := cg.AddProcess(pid); err != nil {
			slog.Warn("runlauncher.Run: cgroup attach failed", "id", id, "pid", pid, "error", err)
		}
	}

	if cfg.Net && linux {
		net = network.NewManager(id)
		if err := net.Setup(ctx, pid); err != nil {
			slog.Warn("runlauncher.Run: network setup failed, proceeding without net", "id", id, "error", err)
			net.Close(ctx)
			net = nil
		}
	}

	waitErr := cmd.Wait()

	joinDone := make(chan error, 1)
	go func() { joinDone <- group.Wait() }()
	select {
	case err := <-joinDone:
		if err != nil {
			slog.Warn("runlauncher.Run: tee threads reported an error", "id", id, "error", err)
		}
	case <-time.After(teeJoinTimeout):
		slog.Warn("runlauncher.Run: timed out joining tee threads", "id", id)
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			if updateErr := d.Registry.UpdateStatus(id, containerstate.StatusExited, nil); updateErr != nil {
				slog.Warn("runlauncher.Run: failed to record final status", "id", id, "error", updateErr)
			}
			return 1, fmt.Errorf("runlauncher-error: waiting for child: %w", waitErr)
		}
	}

	code := exitCode
	if err := d.Registry.UpdateStatus(id, containerstate.StatusExited, &code); err != nil {
		slog.Warn("runlauncher.Run: failed to record final status", "id", id, "error", err)
	}
	return exitCode, nil
}

func (d *Driver) setupCgroup(cg *cgroup.Manager, cfg Config) error {
	if err := cg.Create(); err != nil {
		return err
	}
	if cfg.MemoryByte > 0 {
		if err := cg.SetMemoryLimit(cfg.MemoryByte); err != nil {
			return err
		}
	}
	if cfg.CPUPercent > 0 {
		if err := cg.SetCPULimit(cfg.CPUPercent); err != nil {
			return err
		}
	}
	return nil
}

func buildChildArgv(self string, linux, net bool, rootfs string, command []string) []string {
	childArgs := append([]string{self, "child", rootfs}, command...)
	if !linux {
		return childArgs
	}

	argv := []string{"unshare", "--pid"}
	if net {
		argv = append(argv, "--net")
	}
	argv = append(argv, "--fork")
	argv = append(argv, childArgs...)
	return argv
}

// teeStream copies src to both logPath and passthrough until EOF, matching
// spec.md §4.9 step 7. Byte order is preserved within the stream; there is
// no ordering guarantee between the stdout and stderr tee calls.
func teeStream(src io.Reader, logPath string, passthrough io.Writer) error {
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("runlauncher-error: opening log file %s: %w", logPath, err)
	}
	defer f.Close()

	_, err = io.Copy(io.MultiWriter(passthrough, f), src)
	return err
}
