package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/jcontainer/jcontainer/runlauncher"
)

var memorySizeRe = regexp.MustCompile(`(?i)^(\d+)([kmg]?)$`)

// RunCmd launches a new container. Kong binds everything after the last
// recognized flag into Args; whether Args[0] is a rootfs path or the first
// token of the command depends on whether --image was given, exactly as
// spec.md §6 describes ("first non-flag token ends option parsing").
type RunCmd struct {
	Image  string   `help:"pull (if necessary) and use this image reference as rootfs; makes ROOTFS optional"`
	Net    bool     `help:"set up container networking (veth pair to host)"`
	Memory string   `placeholder:"SIZE" help:"memory limit, e.g. 512m, 2g (requires Linux)"`
	CPU    int      `placeholder:"PERCENT" help:"CPU limit as a percentage of one core, e.g. 100 = one core (requires Linux)"`
	Args   []string `arg:"" optional:"" passthrough:"" help:"[ROOTFS] CMD [ARGS...]"`
}

func (r *RunCmd) Run(cctx *Context) error {
	var rootfs string
	var command []string

	if r.Image == "" {
		if len(r.Args) < 2 {
			return fmt.Errorf("config-error: ROOTFS and a command are required when --image is not given")
		}
		rootfs = r.Args[0]
		command = r.Args[1:]
	} else {
		if len(r.Args) < 1 {
			return fmt.Errorf("config-error: a command is required")
		}
		command = r.Args
	}

	var memBytes uint64
	if r.Memory != "" {
		parsed, err := parseMemorySize(r.Memory)
		if err != nil {
			return err
		}
		memBytes = parsed
	}
	if r.CPU < 0 {
		return fmt.Errorf("config-error: --cpu must be > 0")
	}

	cfg := runlauncher.Config{
		ImageRef:   r.Image,
		Rootfs:     rootfs,
		Command:    command,
		Net:        r.Net,
		MemoryByte: memBytes,
		CPUPercent: r.CPU,
	}

	driver := runlauncher.NewDriver(cctx.CacheRoot, cctx.ContainersRoot)
	exitCode, err := driver.Run(context.Background(), os.Stdout, os.Stderr, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
	return nil
}

// parseMemorySize parses a SIZE token matching /^(\d+)([kmg]?)$/i, applying
// the k=1024, m=1024^2, g=1024^3 multipliers from spec.md §6.
func parseMemorySize(s string) (uint64, error) {
	m := memorySizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("config-error: invalid --memory size %q", s)
	}
	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config-error: invalid --memory size %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("config-error: --memory must be > 0")
	}

	switch strings.ToLower(m[2]) {
	case "k":
		n *= 1024
	case "m":
		n *= 1024 * 1024
	case "g":
		n *= 1024 * 1024 * 1024
	}
	return n, nil
}
