// Package harness orchestrates end-to-end verification of the kecc compiler:
// it resolves the toolchain, discovers test cases, drives the per-test build
// and execution pipelines, and aggregates the results into an exit status.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/keclang/kecc-acceptor/catalog"
	"github.com/keclang/kecc-acceptor/exitcodes"
	"github.com/keclang/kecc-acceptor/logging"
	"github.com/keclang/kecc-acceptor/metrics"
	"github.com/keclang/kecc-acceptor/registry"
	"github.com/keclang/kecc-acceptor/runner"
	"github.com/keclang/kecc-acceptor/toolchain"
	"github.com/keclang/kecc-acceptor/types"
)

// Harness verifies a compiler build against its golden transcripts across
// the configured target profiles.
type Harness struct {
	config    *Config
	version   string
	registry  *registry.Registry
	resolver  toolchain.Resolver
	formatter ResultFormatter
	summary   *types.RunSummary

	mu         sync.Mutex // serializes per-result handling from parallel pipelines
	fileLogger *logging.FileLogger
}

func New(config *Config, version string) (*Harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("creating harness",
		"sourceRoot", config.SourceRoot,
		"buildRoot", config.BuildRoot,
		"targets", len(config.Targets),
		"concurrency", config.Concurrency)

	reg, err := registry.New(registry.Config{
		Log:        config.Log,
		ConfigFile: config.ConfigFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	return &Harness{
		config:    config,
		version:   version,
		registry:  reg,
		resolver:  toolchain.PathResolver{},
		formatter: NewConsoleResultFormatter(),
	}, nil
}

// Run executes one full verification run and returns nil only when every
// (test, target) pair passed. A missing compiler, missing tools or an empty
// test catalog surface as a TestFailureError so the process exits with the
// same code as a failing test run.
func (h *Harness) Run(ctx context.Context) error {
	// Panic recovery so internal bugs exit with code 2 rather than 1
	defer func() {
		if r := recover(); r != nil {
			h.config.Log.Error("runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	h.config.Log.Info("starting kecc-acceptor", "version", h.version)

	profiles := h.registry.ApplyAll(h.config.Targets)

	paths, err := toolchain.ResolveAll(h.resolver, h.config.CompilerPath, profiles)
	if err != nil {
		h.config.Log.Error("toolchain resolution failed", "error", err)
		return NewTestFailureError(err.Error())
	}
	h.config.Log.Debug("resolved toolchain", "compiler", paths.Compiler, "tools", len(paths.Tools))

	// Discover each profile's catalog once; profiles sharing a tests
	// directory share the discovery result.
	catalogs := make(map[string][]types.TestCase)
	var units []runner.Unit
	for _, profile := range profiles {
		dir := profile.TestsDir(h.config.SourceRoot)
		cases, ok := catalogs[dir]
		if !ok {
			cases, err = catalog.Discover(dir)
			if err != nil {
				h.config.Log.Error("test discovery failed", "target", profile.Name, "error", err)
				return NewTestFailureError(err.Error())
			}
			catalogs[dir] = cases
		}
		for _, c := range cases {
			units = append(units, runner.Unit{Profile: profile, Case: c})
		}
	}
	h.config.Log.Info("discovered tests", "targets", len(profiles), "pipelines", len(units))

	workDir, cleanupWorkDir, err := h.acquireWorkDir()
	if err != nil {
		return NewTestFailureError(err.Error())
	}
	defer cleanupWorkDir()

	runID := uuid.New().String()
	h.fileLogger, err = logging.NewFileLogger(h.config.LogDir, runID)
	if err != nil {
		return NewTestFailureError(fmt.Sprintf("failed to create log directory: %v", err))
	}
	h.config.Log.Info("logging run output", "dir", h.fileLogger.RunDir())

	run, err := runner.New(runner.Config{
		Paths:         paths,
		SourceRoot:    h.config.SourceRoot,
		WorkDir:       workDir,
		StageTimeout:  h.registry.StageTimeout(h.config.StageTimeout),
		KeepArtifacts: h.config.KeepArtifacts,
		Concurrency:   h.config.Concurrency,
		RunID:         runID,
		Log:           h.config.Log,
		OnResult:      h.handleResult,
	})
	if err != nil {
		return NewTestFailureError(err.Error())
	}

	summary, err := run.RunAll(ctx, units)
	if err != nil {
		h.config.Log.Error("run aborted", "error", err)
		return NewTestFailureError(err.Error())
	}
	h.summary = summary

	if err := h.formatter.FormatResults(summary); err != nil {
		h.config.Log.Error("failed to render results", "error", err)
	}
	if err := h.fileLogger.Complete(summary); err != nil {
		h.config.Log.Error("failed to write summary log", "error", err)
	}

	metrics.RecordAcceptance(
		summary.RunID,
		string(summary.Status),
		summary.Stats.Total,
		summary.Stats.Passed,
		summary.Stats.Failed,
		summary.Duration,
	)

	h.config.Log.Info("run completed", "run_id", summary.RunID, "status", summary.Status)
	if summary.Status == types.TestStatusFail {
		return NewTestFailureError(summary.String())
	}
	return nil
}

// Summary returns the result of the last completed run.
func (h *Harness) Summary() *types.RunSummary {
	return h.summary
}

// handleResult is invoked by the runner for every finished pipeline. It may
// be called from worker goroutines.
func (h *Harness) handleResult(result *types.TestResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if result.Status == types.TestStatusPass {
		h.config.Log.Info("pipeline passed", "test", result.Case.Name, "target", result.Target)
	} else {
		h.config.Log.Warn("pipeline failed", "test", result.Case.Name, "target", result.Target)
	}
	if err := h.fileLogger.LogResult(result); err != nil {
		h.config.Log.Error("failed to log result", "test", result.Case.Name, "target", result.Target, "error", err)
		metrics.RecordErrorDetails("failed to log result", err)
	}
	metrics.RecordPipeline(h.fileLogger.RunID(), result)
}

// acquireWorkDir returns the base working directory for this run. When none
// is configured a temporary one is created and removed afterwards, unless
// artifacts are being kept.
func (h *Harness) acquireWorkDir() (string, func(), error) {
	if h.config.WorkDir != "" {
		if err := os.MkdirAll(h.config.WorkDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create work directory: %w", err)
		}
		return h.config.WorkDir, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "kecc-acceptor-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	cleanup := func() {
		if h.config.KeepArtifacts {
			h.config.Log.Info("keeping artifacts", "dir", dir)
			return
		}
		if err := os.RemoveAll(dir); err != nil {
			h.config.Log.Warn("failed to remove work directory", "dir", dir, "error", err)
		}
	}
	return dir, cleanup, nil
}
