// Package runner executes build-and-verify pipelines: for each (test case,
// target) pair it drives the ordered compile/assemble/link/execute stages in
// an isolated working directory and compares the captured output against the
// golden transcript.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/keclang/kecc-acceptor/compare"
	"github.com/keclang/kecc-acceptor/targets"
	"github.com/keclang/kecc-acceptor/toolchain"
	"github.com/keclang/kecc-acceptor/types"
)

// Unit is one schedulable pipeline: a test case bound to a target profile.
type Unit struct {
	Profile targets.Profile
	Case    types.TestCase
}

// Config holds the shared, read-only state for a run. Everything here is
// computed once and may be shared freely across concurrent pipelines.
type Config struct {
	Paths         toolchain.Paths
	SourceRoot    string
	WorkDir       string
	StageTimeout  time.Duration // 0 = no timeout; a timeout is a stage failure
	KeepArtifacts bool
	Concurrency   int    // <=1 runs pipelines sequentially
	RunID         string // empty = generate one
	Log           *slog.Logger

	// OnResult, when set, is invoked for every finished pipeline. Callbacks
	// may run from worker goroutines; the aggregator serializes them.
	OnResult func(*types.TestResult)
}

// Runner executes pipelines for a fixed configuration.
type Runner struct {
	cfg    Config
	tracer trace.Tracer
}

// New validates the configuration and creates a runner.
func New(cfg Config) (*Runner, error) {
	if cfg.SourceRoot == "" {
		return nil, fmt.Errorf("source root is required")
	}
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("work directory is required")
	}
	if cfg.Paths.Compiler == "" {
		return nil, fmt.Errorf("resolved toolchain paths are required")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Runner{
		cfg:    cfg,
		tracer: otel.Tracer("pipeline runner"),
	}, nil
}

// RunAll drives every unit and returns the finalized summary. Stage and
// comparison failures are folded into the summary; a returned error is a
// fatal condition (missing golden transcript, unusable working directory)
// that aborted the run.
func (r *Runner) RunAll(ctx context.Context, units []Unit) (*types.RunSummary, error) {
	start := time.Now()
	runID := r.cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	summary := &types.RunSummary{
		RunID: runID,
		Stats: types.ResultStats{StartTime: start},
	}
	r.cfg.Log.Debug("running all pipelines", "run_id", summary.RunID, "units", len(units))

	var results []*types.TestResult
	var err error
	if r.cfg.Concurrency > 1 {
		results, err = r.runParallel(ctx, units)
	} else {
		results, err = r.runSequential(ctx, units)
	}
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		summary.Record(result)
	}
	summary.Duration = time.Since(start)
	summary.Finalize()
	return summary, nil
}

func (r *Runner) runSequential(ctx context.Context, units []Unit) ([]*types.TestResult, error) {
	results := make([]*types.TestResult, 0, len(units))
	for _, unit := range units {
		result, err := r.RunUnit(ctx, unit)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
		if r.cfg.OnResult != nil {
			r.cfg.OnResult(result)
		}
	}
	return results, nil
}

// RunUnit executes one full pipeline. The returned error is reserved for
// fatal conditions; per-test failures come back inside the result.
func (r *Runner) RunUnit(ctx context.Context, unit Unit) (result *types.TestResult, err error) {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("pipeline %s/%s", unit.Case.Name, unit.Profile.Name))
	defer span.End()

	start := time.Now()
	defer func() {
		if result != nil {
			result.Duration = time.Since(start)
		}
	}()

	log := r.cfg.Log.With("test", unit.Case.Name, "target", unit.Profile.Name)
	log.Info("running pipeline")

	// The golden transcript must exist before the pipeline starts; its
	// absence is an environment fault, not a per-test failure.
	expected, err := os.ReadFile(unit.Case.ExpectedPath)
	if err != nil {
		return nil, fmt.Errorf("expected output file missing for test %s: %w", unit.Case.Name, err)
	}

	workdir, cleanup, err := r.acquireWorkdir(unit)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	result = &types.TestResult{
		Case:   unit.Case,
		Target: unit.Profile.Name,
	}

	run, stageErr, err := r.runPipeline(ctx, unit, workdir)
	if err != nil {
		return nil, err
	}
	if stageErr != nil {
		log.Warn("stage failed", "stage", stageErr.Result.Stage, "exit_code", stageErr.Result.ExitCode)
		result.Status = types.TestStatusFail
		result.Stage = stageErr
		return result, nil
	}

	result.ExitCode = run.ExitCode
	result.Outcome = compare.Outputs(string(expected), run.Stdout)
	if result.Outcome.Passed {
		result.Status = types.TestStatusPass
	} else {
		log.Warn("output mismatch")
		result.Status = types.TestStatusFail
	}
	return result, nil
}

// runPipeline executes the ordered stages inside workdir, stopping at the
// first failing stage. It returns the execute-stage result on success.
func (r *Runner) runPipeline(ctx context.Context, unit Unit, workdir string) (types.StageResult, *types.StageError, error) {
	profile := unit.Profile
	paths := r.cfg.Paths

	// Stage 1: compile the test source to assembly text (out.s in workdir).
	sourcePath, err := filepath.Abs(unit.Case.SourcePath)
	if err != nil {
		return types.StageResult{}, nil, fmt.Errorf("resolving source path: %w", err)
	}
	argv := append([]string{paths.Compiler}, profile.CompileArgs(sourcePath)...)
	if stageErr := r.buildStage(ctx, workdir, "compile", argv); stageErr != nil {
		return types.StageResult{}, stageErr, nil
	}

	// Stage 2: assemble the emitted program assembly.
	assembler := paths.Tool(profile.Assembler.Name)
	argv = append([]string{assembler}, profile.AssembleArgs(targets.AsmFile, targets.ProgramObject)...)
	if stageErr := r.buildStage(ctx, workdir, "assemble", argv); stageErr != nil {
		return types.StageResult{}, stageErr, nil
	}

	// Stage 3: assemble the runtime-support objects (freestanding profiles).
	runtimeObjects := profile.RuntimeObjects()
	for i, rtSource := range profile.RuntimeSourcePaths(r.cfg.SourceRoot) {
		stage := fmt.Sprintf("assemble %s", filepath.Base(rtSource))
		argv = append([]string{assembler}, profile.AssembleArgs(rtSource, runtimeObjects[i])...)
		if stageErr := r.buildStage(ctx, workdir, stage, argv); stageErr != nil {
			return types.StageResult{}, stageErr, nil
		}
	}

	// Stage 4: link the program and runtime objects into an executable.
	objects := append([]string{targets.ProgramObject}, runtimeObjects...)
	argv = append([]string{paths.Tool(profile.Linker.Name)}, profile.LinkArgs(objects, targets.Executable)...)
	if stageErr := r.buildStage(ctx, workdir, "link", argv); stageErr != nil {
		return types.StageResult{}, stageErr, nil
	}

	// Stage 5: execute the binary, via the emulator for cross targets. A
	// nonzero exit here is tolerated: the program under test may legitimately
	// terminate with a nonzero status. Only failure to start (or a timeout)
	// fails the stage.
	executable := "." + string(os.PathSeparator) + targets.Executable
	argv = profile.ExecuteArgs(executable)
	if profile.Emulator != "" {
		argv[0] = paths.Tool(profile.Emulator)
	}
	run, stageErr := r.runStage(ctx, workdir, "execute", argv)
	if stageErr != nil {
		return types.StageResult{}, stageErr, nil
	}
	return run, nil, nil
}

// buildStage runs a stage where any nonzero exit is fatal to the stage.
func (r *Runner) buildStage(ctx context.Context, workdir, stage string, argv []string) *types.StageError {
	result, stageErr := r.runStage(ctx, workdir, stage, argv)
	if stageErr != nil {
		return stageErr
	}
	if result.ExitCode != 0 {
		return &types.StageError{Result: result}
	}
	return nil
}

// acquireWorkdir prepares the exclusive working directory for one pipeline.
// The directory name derives from both test name and target, so no two
// in-flight pipelines can share one. Stale artifacts from earlier runs are
// removed before the pipeline starts.
func (r *Runner) acquireWorkdir(unit Unit) (string, func(), error) {
	workdir := filepath.Join(r.cfg.WorkDir, unit.Profile.Name, unit.Case.Name)
	if err := os.RemoveAll(workdir); err != nil {
		return "", nil, fmt.Errorf("clearing working directory %s: %w", workdir, err)
	}
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating working directory %s: %w", workdir, err)
	}

	cleanup := func() {
		if r.cfg.KeepArtifacts {
			return
		}
		if err := os.RemoveAll(workdir); err != nil {
			r.cfg.Log.Warn("failed to remove working directory", "dir", workdir, "error", err)
		}
	}
	return workdir, cleanup, nil
}
