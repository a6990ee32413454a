package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Context carries resolved application paths into every subcommand's Run.
type Context struct {
	AppBaseDir     string
	CacheRoot      string
	ContainersRoot string
}

type CLI struct {
	LogFile  string `default:"" placeholder:"<log-file-path>" help:"location of the JSON log file (default: <app-base-dir>/log/jcontainer.log)"`
	LogLevel string `default:"info" placeholder:"<debug|info|warn|error>" help:"the logging level (debug, info, warn, error)"`

	Run     RunCmd     `cmd:"" help:"launch a new container"`
	Child   ChildCmd   `cmd:"" hidden:"" help:"internal: child initializer, not for direct invocation"`
	List    ListCmd    `cmd:"" help:"list containers"`
	Stop    StopCmd    `cmd:"" help:"stop a running container"`
	Logs    LogsCmd    `cmd:"" help:"print a container's captured output"`
	Rm      RmCmd      `cmd:"" help:"remove a container's state"`
	Version VersionCmd `cmd:"" help:"print version information about this command"`
}

func (c *CLI) initSlog(appBaseDir string) {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logFile := c.LogFile
	if logFile == "" {
		logFile = filepath.Join(appBaseDir, "log", "jcontainer.log")
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not create log directory: %v\n", err)
	}

	writer := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	slog.Info("slog initialized", "logFile", logFile, "level", level.String())
}

const description = `jcontainer is a minimal OCI-compatible container runtime.

It launches single-command containers using Linux namespaces, cgroups v2
and a bind-mount plus pivot_root rootfs, falling back to a degraded
chroot-only mode on non-Linux hosts.`

func appBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config-error: resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".jcontainer")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("config-error: creating app base directory: %w", err)
	}
	return dir, nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Configuration(kong.JSON, ".jcontainer.json", "~/.jcontainer.json"),
		kong.Description(description))

	baseDir, err := appBaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	cli.initSlog(baseDir)

	runCtx := &Context{
		AppBaseDir:     baseDir,
		CacheRoot:      filepath.Join(baseDir, "cache"),
		ContainersRoot: filepath.Join(baseDir, "containers"),
	}

	err = kctx.Run(runCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
