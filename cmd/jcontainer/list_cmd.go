package main

import (
	"os"

	"github.com/jcontainer/jcontainer/containerstate"
	"github.com/jcontainer/jcontainer/lifecycle"
)

// ListCmd lists every registered container.
type ListCmd struct{}

func (c *ListCmd) Run(cctx *Context) error {
	reg := containerstate.NewRegistry(cctx.ContainersRoot)
	return lifecycle.NewController(reg).List(os.Stdout)
}
