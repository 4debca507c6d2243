// Command traceq versions requirement documents per business journey and
// answers QA questions from them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/traceq/internal/adapters/driven/ai"
	"github.com/custodia-labs/traceq/internal/adapters/driven/config/file"
	"github.com/custodia-labs/traceq/internal/adapters/driving/cli"
	"github.com/custodia-labs/traceq/internal/core/services"
	"github.com/custodia-labs/traceq/internal/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Sync()

	cli.SetVersion(version)

	cfg, err := file.NewConfigStore(os.Getenv("TRACEQ_HOME"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening configuration: %v\n", err)
		return 1
	}
	settingsService := services.NewSettingsService(cfg, ai.NewConfigValidator())

	settings, err := cfg.Load()
	if err != nil {
		// Configuration commands still work so the file can be repaired.
		logger.Error("invalid configuration", "path", cfg.Path(), "error", err)
		cli.SetServices(cli.Services{Settings: settingsService})
		return execute(ctx)
	}

	rt, err := build(ctx, settings, cfg)
	if err != nil {
		logger.Error("starting traceq", "error", err)
		fmt.Fprintln(os.Stderr, "Run 'traceq config check' to review the configuration.")
		cli.SetServices(cli.Services{Settings: settingsService})
		return execute(ctx)
	}
	defer rt.Close(ctx)

	rt.services.Settings = settingsService
	cli.SetServices(rt.services)
	return execute(ctx)
}

func execute(ctx context.Context) int {
	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}
