// Package logging persists per-run diagnostics to disk so failures stay
// inspectable after the console scrolls away.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"

	"github.com/keclang/kecc-acceptor/types"
)

const (
	// RunDirectoryPrefix is the standardized prefix for run directories.
	RunDirectoryPrefix = "testrun-"

	allLogsFilename = "all.log"
	summaryFilename = "summary.log"
	failedDirName   = "failed"
)

// FileLogger writes test results under <baseDir>/testrun-<runID>/: a status
// line per pipeline in all.log, one diagnostic file per failing pipeline
// under failed/, and a final summary.log.
type FileLogger struct {
	runID     string
	runDir    string
	failedDir string
	mu        sync.Mutex // protects concurrent appends from parallel pipelines
	allLogs   *os.File
}

// NewFileLogger creates the run directory tree and opens the combined log.
func NewFileLogger(baseDir, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	failedDir := filepath.Join(runDir, failedDirName)
	if err := os.MkdirAll(failedDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	allLogs, err := os.Create(filepath.Join(runDir, allLogsFilename))
	if err != nil {
		return nil, fmt.Errorf("creating combined log: %w", err)
	}

	return &FileLogger{
		runID:     runID,
		runDir:    runDir,
		failedDir: failedDir,
		allLogs:   allLogs,
	}, nil
}

// RunID returns the identifier this logger was created for.
func (l *FileLogger) RunID() string {
	return l.runID
}

// RunDir returns the directory for this run's logs.
func (l *FileLogger) RunDir() string {
	return l.runDir
}

// LogResult records one finished pipeline. Failing pipelines additionally
// get a diagnostic file carrying the stage failure or output diff, with any
// ANSI escape sequences from tool output stripped.
func (l *FileLogger) LogResult(result *types.TestResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%s %s (%.2fs)\n",
		strings.ToUpper(string(result.Status)), result.Key(), result.Duration.Seconds())
	if _, err := l.allLogs.WriteString(line); err != nil {
		return fmt.Errorf("writing combined log: %w", err)
	}

	if result.Status == types.TestStatusPass {
		return nil
	}

	path := filepath.Join(l.failedDir, fileSafeKey(result)+".log")
	report := stripansi.Strip(renderFailureReport(result))
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return fmt.Errorf("writing failure report: %w", err)
	}
	return nil
}

// Complete writes the final summary and closes the combined log.
func (l *FileLogger) Complete(summary *types.RunSummary) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	content := fmt.Sprintf("run:    %s\nstatus: %s\nresult: %s\n",
		summary.RunID, summary.Status, summary.String())
	if err := os.WriteFile(filepath.Join(l.runDir, summaryFilename), []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return l.allLogs.Close()
}

// fileSafeKey flattens a result key into a file name.
func fileSafeKey(result *types.TestResult) string {
	return strings.ReplaceAll(result.Key(), string(os.PathSeparator), "_")
}

// renderFailureReport renders the full diagnostic block for one failure.
func renderFailureReport(result *types.TestResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "test:   %s\n", result.Case.Name)
	fmt.Fprintf(&b, "target: %s\n", result.Target)
	fmt.Fprintf(&b, "status: %s\n", result.Status)
	b.WriteString("\n")
	if result.Stage != nil {
		b.WriteString(result.Stage.Diagnostic())
	} else if result.Outcome.Diff != "" {
		b.WriteString("output mismatch:\n")
		b.WriteString(result.Outcome.Diff)
	}
	return b.String()
}
