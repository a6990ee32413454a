package main

import (
	"fmt"

	"github.com/jcontainer/jcontainer/containerstate"
	"github.com/jcontainer/jcontainer/lifecycle"
)

// RmCmd deletes a container's registry state. It fails if the container is
// still running.
type RmCmd struct {
	ID string `arg:"" help:"ID of the container to remove"`
}

func (c *RmCmd) Run(cctx *Context) error {
	reg := containerstate.NewRegistry(cctx.ContainersRoot)
	if err := lifecycle.NewController(reg).Remove(c.ID); err != nil {
		return err
	}
	fmt.Println(c.ID)
	return nil
}
