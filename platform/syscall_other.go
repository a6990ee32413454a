//go:build !linux

package platform

import "syscall"

type degradedFacade struct{}

// New returns the degraded, chroot-only syscall facade used on non-Linux
// development hosts.
func New() Facade {
	return &degradedFacade{}
}

func (degradedFacade) Unshare(flags uintptr) error {
	return ErrUnsupported
}

func (degradedFacade) Mount(source, target, fstype string, flags uintptr, data string) error {
	return ErrUnsupported
}

func (degradedFacade) Unmount(target string, flags int) error {
	return ErrUnsupported
}

func (degradedFacade) PivotRoot(newRoot, putOld string) error {
	return ErrUnsupported
}

func (degradedFacade) Sethostname(name string) error {
	return ErrUnsupported
}

func (degradedFacade) Chroot(path string) error {
	return syscall.Chroot(path)
}

func (degradedFacade) Chdir(path string) error {
	return syscall.Chdir(path)
}
