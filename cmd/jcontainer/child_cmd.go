package main

import (
	"fmt"
	"os"

	"github.com/jcontainer/jcontainer/runlauncher"
)

// ChildCmd is the internal re-exec target the Parent Driver spawns inside
// the new namespaces. Users should never invoke this directly.
type ChildCmd struct {
	Rootfs string   `arg:"" help:"path to the extracted rootfs"`
	Args   []string `arg:"" passthrough:"" help:"CMD [ARGS...]"`
}

func (c *ChildCmd) Run(cctx *Context) error {
	exitCode, err := runlauncher.RunChild(c.Rootfs, c.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
	return nil
}
