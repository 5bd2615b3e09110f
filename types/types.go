package types

import (
	"fmt"
	"time"
)

// TestStatus represents the possible outcomes of a test pipeline run.
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
)

// TestCase is a discovered source/golden pair. Immutable once discovered;
// identity is Name (the source file's base name without extension).
type TestCase struct {
	Name         string
	SourcePath   string
	ExpectedPath string
}

// StageResult captures the outcome of one external process invocation.
type StageResult struct {
	Stage    string
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// CommandLine renders the invoked command for diagnostics.
func (sr StageResult) CommandLine() string {
	line := ""
	for i, arg := range sr.Command {
		if i > 0 {
			line += " "
		}
		line += arg
	}
	return line
}

// StageError is a fatal stage failure: a compile/assemble/link invocation
// exited nonzero, a stage timed out, or the execution stage failed to start.
// It is terminal for one (case, target) pair but not for the run.
type StageError struct {
	Result StageResult
	Err    error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %s: %v", e.Result.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s exited with code %d", e.Result.Stage, e.Result.ExitCode)
}

// Unwrap implements the errors.Unwrap interface.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Diagnostic renders the full stage failure detail: failing stage, exact
// command, exit code and captured streams, surfaced verbatim.
func (e *StageError) Diagnostic() string {
	out := fmt.Sprintf("stage:     %s\ncommand:   %s\nexit code: %d\n",
		e.Result.Stage, e.Result.CommandLine(), e.Result.ExitCode)
	if e.Err != nil {
		out += fmt.Sprintf("error:     %v\n", e.Err)
	}
	if e.Result.Stdout != "" {
		out += "stdout:\n" + e.Result.Stdout
		if e.Result.Stdout[len(e.Result.Stdout)-1] != '\n' {
			out += "\n"
		}
	}
	if e.Result.Stderr != "" {
		out += "stderr:\n" + e.Result.Stderr
		if e.Result.Stderr[len(e.Result.Stderr)-1] != '\n' {
			out += "\n"
		}
	}
	return out
}

// ComparisonOutcome is the result of comparing normalized actual output
// against the golden transcript.
type ComparisonOutcome struct {
	Passed bool
	Diff   string // unified diff of the un-normalized texts, empty when Passed
}

// TestResult captures the outcome of one (case, target) pipeline run.
type TestResult struct {
	Case     TestCase
	Target   string
	Status   TestStatus
	Stage    *StageError       // set when a build/run stage failed
	Outcome  ComparisonOutcome // set when the pipeline ran to completion
	ExitCode int               // exit code of the executed program (tolerated)
	Duration time.Duration
}

// Key identifies a result within a run summary.
func (r *TestResult) Key() string {
	return r.Case.Name + "/" + r.Target
}

// FailureDetail returns the diagnostic to surface for a failing result:
// the stage diagnostic for stage failures, the diff for output mismatches.
func (r *TestResult) FailureDetail() string {
	if r.Stage != nil {
		return r.Stage.Diagnostic()
	}
	return r.Outcome.Diff
}

// ResultStats tracks counts over a run.
type ResultStats struct {
	Total     int
	Passed    int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
}

// RunSummary accumulates results over a full run. It grows monotonically and
// is finalized once into an exit status.
type RunSummary struct {
	RunID    string
	Results  []*TestResult
	Stats    ResultStats
	Status   TestStatus
	Duration time.Duration
}

// Record folds one result into the summary.
func (s *RunSummary) Record(r *TestResult) {
	s.Results = append(s.Results, r)
	s.Stats.Total++
	if r.Status == TestStatusPass {
		s.Stats.Passed++
	} else {
		s.Stats.Failed++
	}
}

// Finalize computes the overall status. The summary passes if and only if
// every recorded pair passed.
func (s *RunSummary) Finalize() {
	s.Status = TestStatusPass
	if s.Stats.Failed > 0 {
		s.Status = TestStatusFail
	}
	s.Stats.EndTime = time.Now()
}

// String renders a one-line human readable summary.
func (s *RunSummary) String() string {
	return fmt.Sprintf("%d passed, %d failed (%d total) in %.1fs",
		s.Stats.Passed, s.Stats.Failed, s.Stats.Total, s.Duration.Seconds())
}
