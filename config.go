package harness

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/keclang/kecc-acceptor/flags"
	"github.com/keclang/kecc-acceptor/targets"
)

// Config holds the application configuration
type Config struct {
	SourceRoot    string            // Compiler source tree; tests and runtime sources live under it
	BuildRoot     string            // Build tree; the compiler binary lives at <BuildRoot>/src/keccc
	CompilerPath  string            // Resolved path of the compiler under test
	Targets       []targets.Profile // Target profiles to verify
	WorkDir       string            // Base directory for per-test working directories ("" = temp dir)
	LogDir        string            // Directory to store per-run logs
	ConfigFile    string            // Optional YAML toolchain-override file
	StageTimeout  time.Duration     // Per-stage timeout; 0 disables it
	Concurrency   int               // Number of concurrent pipelines (1 = sequential)
	KeepArtifacts bool              // Leave working directories in place after the run
	MetricsAddr   string            // Prometheus listen address ("" = disabled)
	HealthzAddr   string            // Healthz listen address ("" = disabled)
	Tracing       bool              // Export OpenTelemetry traces
	Log           *slog.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log *slog.Logger) (*Config, error) {
	// Parse flags
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	profiles, err := targets.ParseList(ctx.String(flags.Target.Name))
	if err != nil {
		return nil, err
	}

	// Resolve the absolute paths
	sourceRoot, err := filepath.Abs(ctx.String(flags.SourceRoot.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for source root '%s': %w", ctx.String(flags.SourceRoot.Name), err)
	}
	buildRoot, err := filepath.Abs(ctx.String(flags.BuildRoot.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for build root '%s': %w", ctx.String(flags.BuildRoot.Name), err)
	}
	logDir, err := filepath.Abs(ctx.String(flags.LogDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", ctx.String(flags.LogDir.Name), err)
	}

	workDir := ctx.String(flags.WorkDir.Name)
	if workDir != "" {
		workDir, err = filepath.Abs(workDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for work directory '%s': %w", workDir, err)
		}
	}

	concurrency := ctx.Int(flags.Concurrency.Name)
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
	}

	return &Config{
		SourceRoot:    sourceRoot,
		BuildRoot:     buildRoot,
		CompilerPath:  filepath.Join(buildRoot, "src", "keccc"),
		Targets:       profiles,
		WorkDir:       workDir,
		LogDir:        logDir,
		ConfigFile:    ctx.String(flags.ConfigFile.Name),
		StageTimeout:  ctx.Duration(flags.Timeout.Name),
		Concurrency:   concurrency,
		KeepArtifacts: ctx.Bool(flags.KeepArtifacts.Name),
		MetricsAddr:   ctx.String(flags.MetricsAddr.Name),
		HealthzAddr:   ctx.String(flags.HealthzAddr.Name),
		Tracing:       ctx.Bool(flags.Tracing.Name),
		Log:           log,
	}, nil
}
