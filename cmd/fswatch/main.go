package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"fswatch/internal/logging"
	"fswatch/internal/version"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitSignaled = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type command func(args []string, stdout, stderr io.Writer) int

func resolveCommand(args []string) (command, []string) {
	if len(args) > 0 {
		switch args[0] {
		case "schema":
			return runSchema, args[1:]
		case "version":
			return runVersion, args[1:]
		}
	}
	return runWatch, args
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd, rest := resolveCommand(args)
	return cmd(rest, stdout, stderr)
}

func runSchema(_ []string, stdout, stderr io.Writer) int {
	if err := writeWatchFileSchema(stdout); err != nil {
		fmt.Fprintf(stderr, "fswatch: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func runVersion(_ []string, stdout, _ io.Writer) int {
	info := version.GetVersionInfo()
	fmt.Fprintf(stdout, "fswatch %s\n", info.String())
	return exitOK
}

func runWatch(args []string, stdout, stderr io.Writer) int {
	cfg, watchFile, err := loadConfig(args, stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "fswatch: %v\n", err)
		return exitUsage
	}
	if cfg.ShowVersion {
		return runVersion(nil, stdout, stderr)
	}

	logger, closeLog := newDaemonLogger(cfg, stderr)
	defer closeLog()
	logger.Info("fswatch starting", map[string]string{
		"version":   version.Version,
		"config":    cfg.ConfigPath,
		"throttle":  cfg.Throttle.String(),
		"cache_ttl": cfg.CacheTTL.String(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	stopSignals := watchShutdownSignals(logger, cancel, func() { os.Exit(exitSignaled) }, signalCh)
	defer stopSignals()

	if err := runDaemon(ctx, cfg, watchFile, logger, stdout); err != nil {
		logger.Error("fswatch stopped", map[string]string{
			"error": err.Error(),
		})
		fmt.Fprintf(stderr, "fswatch: %v\n", err)
		return exitFailure
	}
	logger.Info("fswatch stopped", nil)
	return exitOK
}

// newDaemonLogger writes to stderr, keeping stdout for event lines, or to a
// rotating file when --log-file is set.
func newDaemonLogger(cfg Config, stderr io.Writer) (*logging.Logger, func()) {
	output := stderr
	var rotating *lumberjack.Logger
	if cfg.LogFile != "" {
		rotating = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		output = rotating
	}
	logger := logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), cfg.LogLevel, output)
	return logger, func() {
		logger.Close()
		if rotating != nil {
			_ = rotating.Close()
		}
	}
}
