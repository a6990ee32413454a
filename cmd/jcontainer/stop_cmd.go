package main

import (
	"context"
	"os"

	"github.com/jcontainer/jcontainer/containerstate"
	"github.com/jcontainer/jcontainer/lifecycle"
)

// StopCmd sends SIGTERM (then SIGKILL if needed) to a running container.
type StopCmd struct {
	ID string `arg:"" help:"ID of the container to stop"`
}

func (c *StopCmd) Run(cctx *Context) error {
	reg := containerstate.NewRegistry(cctx.ContainersRoot)
	return lifecycle.NewController(reg).Stop(context.Background(), os.Stdout, c.ID)
}
