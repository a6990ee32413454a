//go:build linux

package platform

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// pivotRootTrampolineNumbers maps GOARCH to the raw pivot_root syscall
// number. There is no libc wrapper for pivot_root, so it has to be invoked
// through the generic syscall trampoline with an architecture-selected
// number.
var pivotRootTrampolineNumbers = map[string]uintptr{
	"amd64": 155,
	"arm64": 217,
}

type linuxFacade struct{}

// New returns the Linux syscall facade.
func New() Facade {
	return &linuxFacade{}
}

func (linuxFacade) Unshare(flags uintptr) error {
	return unix.Unshare(int(flags))
}

func (linuxFacade) Mount(source, target, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, uintptr(flags), data)
}

func (linuxFacade) Unmount(target string, flags int) error {
	return unix.Unmount(target, flags)
}

func (linuxFacade) PivotRoot(newRoot, putOld string) error {
	num, ok := pivotRootTrampolineNumbers[runtime.GOARCH]
	if !ok {
		return ErrUnsupported
	}

	newRootPtr, err := unix.BytePtrFromString(newRoot)
	if err != nil {
		return err
	}
	putOldPtr, err := unix.BytePtrFromString(putOld)
	if err != nil {
		return err
	}

	_, _, errno := unix.Syscall(num, uintptr(unsafe.Pointer(newRootPtr)), uintptr(unsafe.Pointer(putOldPtr)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (linuxFacade) Sethostname(name string) error {
	return unix.Sethostname([]byte(name))
}

func (linuxFacade) Chroot(path string) error {
	return unix.Chroot(path)
}

func (linuxFacade) Chdir(path string) error {
	return unix.Chdir(path)
}
