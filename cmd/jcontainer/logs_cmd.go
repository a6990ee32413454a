package main

import (
	"os"

	"github.com/jcontainer/jcontainer/containerstate"
	"github.com/jcontainer/jcontainer/lifecycle"
)

// LogsCmd prints a container's captured stdout and stderr.
type LogsCmd struct {
	ID string `arg:"" help:"ID of the container whose logs to print"`
}

func (c *LogsCmd) Run(cctx *Context) error {
	reg := containerstate.NewRegistry(cctx.ContainersRoot)
	return lifecycle.NewController(reg).Logs(os.Stdout, os.Stderr, c.ID)
}
