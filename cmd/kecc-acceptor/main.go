package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	harness "github.com/keclang/kecc-acceptor"
	"github.com/keclang/kecc-acceptor/flags"
	"github.com/keclang/kecc-acceptor/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "kecc-acceptor"
	app.Usage = "kecc compiler acceptance tester"
	app.Description = "kecc-acceptor compiles, assembles, links and runs every compiler test case, comparing program output against golden transcripts across the configured target profiles"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// Check for typed runtime errors
			if harness.IsRuntimeError(err) {
				// For internal errors, use exit code 2
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if harness.IsTestFailureError(err) {
				// For test failures and environment faults, use exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	log, err := newLogger(ctx.String(flags.LogLevel.Name))
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	if ctx.Bool(flags.Tracing.Name) {
		shutdown, err := otelconfig.ConfigureOpenTelemetry(
			otelconfig.WithServiceName(ctx.App.Name),
			otelconfig.WithServiceVersion(ctx.App.Version),
		)
		if err != nil {
			return fmt.Errorf("failed to set up open telemetry: %w", err)
		}
		defer shutdown()
	}

	cfg, err := harness.NewConfig(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	svc := service.New(cfg.HealthzAddr, cfg.MetricsAddr)
	svc.Start(ctx.Context)
	defer svc.Shutdown()

	h, err := harness.New(cfg, Version)
	if err != nil {
		return fmt.Errorf("failed to create harness: %w", err)
	}
	return h.Run(ctx.Context)
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler), nil
}
