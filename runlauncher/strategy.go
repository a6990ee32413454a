package runlauncher

import (
	"runtime"
	"strings"
)

// IsLinux reports whether the current OS identifier selects the Linux
// namespace-isolation path (§4.12). There is no runtime re-evaluation: the
// choice is made once at process startup and held for the life of the
// invocation.
func IsLinux() bool {
	return strings.Contains(runtime.GOOS, "linux")
}
