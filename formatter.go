package harness

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/keclang/kecc-acceptor/types"
)

// ResultFormatter is responsible for formatting and displaying test results.
type ResultFormatter interface {
	FormatResults(summary *types.RunSummary) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	out *os.File
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter() *ConsoleResultFormatter {
	return &ConsoleResultFormatter{out: os.Stdout}
}

// FormatResults renders the run summary as a table grouped by target.
func (f *ConsoleResultFormatter) FormatResults(summary *types.RunSummary) error {
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Acceptance Testing Results (%s)", formatDuration(summary.Duration)))

	// Configure columns
	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Status", "Error",
	})

	// Set column configurations for better readability
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	// Print targets and their results, preserving the run's deterministic
	// order within each target.
	for _, target := range targetOrder(summary) {
		results := resultsForTarget(summary, target)

		var passed, failed int
		var duration time.Duration
		status := types.TestStatusPass
		for _, r := range results {
			duration += r.Duration
			if r.Status == types.TestStatusPass {
				passed++
			} else {
				failed++
				status = types.TestStatusFail
			}
		}

		// Target row - show test counts but no "1" in Tests column
		t.AppendRow(table.Row{
			"Target",
			target,
			formatDuration(duration),
			"-", // Don't count target as a test
			passed,
			failed,
			getResultString(status),
			"",
		})

		for i, r := range results {
			prefix := "├─"
			if i == len(results)-1 {
				prefix = "└─"
			}

			t.AppendRow(table.Row{
				"",
				fmt.Sprintf("%s %s", prefix, r.Case.Name),
				formatDuration(r.Duration),
				"1", // Count actual test
				boolToInt(r.Status == types.TestStatusPass),
				boolToInt(r.Status == types.TestStatusFail),
				getResultString(r.Status),
				extractKeyErrorMessage(r),
			})
		}

		t.AppendSeparator()
	}

	// Update the table style setting based on result status
	if summary.Status == types.TestStatusPass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	// Add summary footer
	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(summary.Duration),
		summary.Stats.Total, // Show total number of actual tests
		summary.Stats.Passed,
		summary.Stats.Failed,
		getResultString(summary.Status),
		"",
	})

	t.Render()

	// Surface each failure's full detail on the console; the table's Error
	// cell only carries a one-line summary.
	for _, r := range summary.Results {
		if r.Status != types.TestStatusFail {
			continue
		}
		detail := r.FailureDetail()
		if detail != "" && !strings.HasSuffix(detail, "\n") {
			detail += "\n"
		}
		fmt.Fprintf(f.out, "\nFAIL %s\n%s", r.Key(), detail)
	}

	fmt.Fprintln(f.out, summary.String())
	return nil
}

func targetOrder(summary *types.RunSummary) []string {
	var order []string
	seen := make(map[string]struct{})
	for _, r := range summary.Results {
		if _, ok := seen[r.Target]; ok {
			continue
		}
		seen[r.Target] = struct{}{}
		order = append(order, r.Target)
	}
	return order
}

func resultsForTarget(summary *types.RunSummary, target string) []*types.TestResult {
	var out []*types.TestResult
	for _, r := range summary.Results {
		if r.Target == target {
			out = append(out, r)
		}
	}
	return out
}

// extractKeyErrorMessage extracts the most pertinent part of the failure for
// display in the table; the full diagnostic goes to the log directory.
func extractKeyErrorMessage(r *types.TestResult) string {
	if r.Status == types.TestStatusPass {
		return ""
	}
	if r.Stage == nil {
		return "output mismatch"
	}

	// Prefer the first line the failing tool printed on stderr.
	if line := firstLine(r.Stage.Result.Stderr); line != "" {
		return fmt.Sprintf("%s: %s", r.Stage.Result.Stage, line)
	}
	return r.Stage.Error()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	// Truncate on a rune boundary so multi-byte tool output is never split
	// mid-sequence.
	if runes := []rune(s); len(runes) > 80 {
		s = string(runes[:70]) + "..."
	}
	return s
}

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a string representing the test result
func getResultString(status types.TestStatus) string {
	if status == types.TestStatusPass {
		return "✓ pass"
	}
	return "✗ fail"
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
