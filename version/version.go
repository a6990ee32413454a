// Package version reports build identity for the jcontainer binary.
package version

import "runtime/debug"

var (
	// GitCommit and BuildTime are set via -ldflags during release builds.
	GitCommit string
	BuildTime string
)

// Info describes one build of jcontainer.
type Info struct {
	GitCommit string           `json:"gitCommit,omitempty"`
	BuildTime string           `json:"buildTime,omitempty"`
	BuildInfo *debug.BuildInfo `json:"buildInfo,omitempty"`
}

// Get returns the current process's version information.
func Get() Info {
	info := Info{GitCommit: GitCommit, BuildTime: BuildTime}
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		info.BuildInfo = buildInfo
	}
	return info
}
