package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/keclang/kecc-acceptor/types"
)

// runStage performs one external process invocation with the working
// directory as current directory, capturing both streams. The call blocks
// until the subprocess exits or the stage timeout elapses.
//
// Classification: a process that started and exited (any code) yields a
// StageResult with no error; the caller decides whether nonzero is fatal.
// Failure to start, or a timeout, yields a StageError.
func (r *Runner) runStage(ctx context.Context, workdir, stage string, argv []string) (types.StageResult, *types.StageError) {
	stageCtx := ctx
	cancel := func() {}
	if r.cfg.StageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, r.cfg.StageTimeout)
	}
	defer cancel()

	_, span := r.tracer.Start(stageCtx, fmt.Sprintf("stage %s", stage))
	span.SetAttributes(attribute.String("command", argv[0]))
	defer span.End()

	cmd := exec.CommandContext(stageCtx, argv[0], argv[1:]...)
	cmd.Dir = workdir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := types.StageResult{
		Stage:    stage,
		Command:  argv,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return result, &types.StageError{
			Result: result,
			Err:    fmt.Errorf("timed out after %v", r.cfg.StageTimeout),
		}
	}

	if runErr != nil {
		exitErr := &exec.ExitError{}
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		// The process never started (missing binary, permission fault).
		return result, &types.StageError{Result: result, Err: runErr}
	}
	return result, nil
}
