package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cvmatch/internal/cli"
	"cvmatch/internal/config"
	"cvmatch/internal/errors"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens before exit
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cvmatch: configuration: %v\n", err)
		return 1
	}

	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cvmatch: logger: %v\n", err)
		return 1
	}
	logger.Debug("cvmatch starting",
		"version", cli.Version,
		"log_level", cfg.App.LogLevel,
		"provider", cfg.AI.Provider,
		"parallel", cfg.Pipeline.Parallel)

	if err := cli.Execute(ctx, cfg, logger); err != nil {
		logger.LogError(err, "cvmatch failed")
		return 1
	}
	return 0
}
