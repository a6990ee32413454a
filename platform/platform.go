// Package platform is a thin, typed wrapper around the handful of Linux
// syscalls the runtime needs to build namespace isolation: unshare, mount,
// umount2, pivot_root, sethostname, chroot and chdir. It exists so the rest
// of the codebase never imports golang.org/x/sys/unix directly; the package
// syscall is still used elsewhere for process signals.
//
// On non-Linux hosts only Chroot and Chdir are implemented; everything else
// fails closed with ErrUnsupported so callers can degrade to chroot-only
// mode (see runlauncher.IsLinux).
package platform

import "errors"

// ErrUnsupported is returned by facade calls that have no meaning on the
// current platform or architecture.
var ErrUnsupported = errors.New("unsupported on this platform")

// Mount flag constants, reproduced bit-exact from the Linux kernel headers
// rather than sourced transitively through golang.org/x/sys/unix, since the
// spec calls these out as constants of record.
const (
	MsBind    = 4096
	MsRec     = 16384
	MsPrivate = 1 << 18
	MntDetach = 2

	CloneNewNS  = 0x00020000
	CloneNewUTS = 0x04000000
	CloneNewPID = 0x20000000
	CloneNewNet = 0x40000000
)

// Facade is the syscall surface the runtime depends on. A single
// implementation is selected per build (syscall_linux.go) and per platform
// (syscall_other.go); there is no runtime dispatch.
type Facade interface {
	Unshare(flags uintptr) error
	Mount(source, target, fstype string, flags uintptr, data string) error
	Unmount(target string, flags int) error
	PivotRoot(newRoot, putOld string) error
	Sethostname(name string) error
	Chroot(path string) error
	Chdir(path string) error
}
