package runlauncher

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/jcontainer/jcontainer/platform"
)

// RunChild performs the Child Initializer sequence (§4.10) inside the
// already-unshared namespaces, then execs the user command with inherited
// stdio. It returns the command's exit code on success; any failure before
// exec is fatal and reported to the caller, which must exit non-zero.
func RunChild(rootfs string, command []string) (int, error) {
	facade := platform.New()

	if err := facade.Sethostname("container"); err != nil && err != platform.ErrUnsupported {
		return 0, fmt.Errorf("child-error: sethostname: %w", err)
	}

	if err := setupFilesystem(facade, rootfs); err != nil {
		return 0, fmt.Errorf("child-error: filesystem setup: %w", err)
	}

	if len(command) == 0 {
		return 0, fmt.Errorf("child-error: no command given")
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("child-error: exec %s: %w", command[0], err)
	}
	return 0, nil
}

func setupFilesystem(facade platform.Facade, rootfs string) error {
	if IsLinux() {
		return setupFilesystemLinux(facade, rootfs)
	}
	return setupFilesystemDegraded(facade, rootfs)
}

func setupFilesystemLinux(facade platform.Facade, rootfs string) error {
	if err := facade.Mount("none", "/", "", platform.MsRec|platform.MsPrivate, ""); err != nil {
		return fmt.Errorf("mount / private: %w", err)
	}
	// pivot_root requires new_root to be a mount point distinct from /.
	if err := facade.Mount(rootfs, rootfs, "", platform.MsBind, ""); err != nil {
		return fmt.Errorf("bind-mount rootfs: %w", err)
	}

	oldRoot := filepath.Join(rootfs, "oldrootfs")
	if err := os.MkdirAll(oldRoot, 0o755); err != nil {
		return fmt.Errorf("mkdir oldrootfs: %w", err)
	}
	if err := facade.PivotRoot(rootfs, oldRoot); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}
	if err := facade.Chdir("/"); err != nil {
		return fmt.Errorf("chdir /: %w", err)
	}

	if err := os.MkdirAll("/proc", 0o555); err != nil {
		return fmt.Errorf("mkdir /proc: %w", err)
	}
	if err := facade.Mount("proc", "/proc", "proc", 0, ""); err != nil {
		return fmt.Errorf("mount /proc: %w", err)
	}

	if err := facade.Unmount("/oldrootfs", platform.MntDetach); err != nil {
		slog.Warn("child.setupFilesystemLinux: lazy-unmount of /oldrootfs failed", "error", err)
	}
	if err := os.RemoveAll("/oldrootfs"); err != nil {
		slog.Warn("child.setupFilesystemLinux: could not remove /oldrootfs", "error", err)
	}
	return nil
}

func setupFilesystemDegraded(facade platform.Facade, rootfs string) error {
	if err := facade.Chroot(rootfs); err != nil {
		return fmt.Errorf("chroot: %w", err)
	}
	if err := facade.Chdir("/"); err != nil {
		return fmt.Errorf("chdir /: %w", err)
	}
	return nil
}
