package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keclang/kecc-acceptor/types"
)

func sampleSummary() *types.RunSummary {
	summary := &types.RunSummary{RunID: "run-1", Duration: 3 * time.Second}
	summary.Record(&types.TestResult{
		Case:     types.TestCase{Name: "add_1"},
		Target:   "nasm",
		Status:   types.TestStatusPass,
		Duration: time.Second,
	})
	summary.Record(&types.TestResult{
		Case:    types.TestCase{Name: "sub_2"},
		Target:  "nasm",
		Status:  types.TestStatusFail,
		Outcome: types.ComparisonOutcome{Diff: "--- expected\n+++ actual\n@@ -1 +1 @@\n-hello\n+hellp\n"},
	})
	summary.Record(&types.TestResult{
		Case:   types.TestCase{Name: "add_1"},
		Target: "aarch64",
		Status: types.TestStatusFail,
		Stage: &types.StageError{Result: types.StageResult{
			Stage:    "assemble",
			Command:  []string{"aarch64-linux-gnu-as", "out.s"},
			ExitCode: 1,
			Stderr:   "out.s:3: Error: unknown mnemonic\nmore context\n",
		}},
	})
	summary.Finalize()
	return summary
}

func renderToString(t *testing.T, summary *types.RunSummary) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.txt")
	out, err := os.Create(path)
	require.NoError(t, err)

	f := &ConsoleResultFormatter{out: out}
	require.NoError(t, f.FormatResults(summary))
	require.NoError(t, out.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFormatResults(t *testing.T) {
	got := renderToString(t, sampleSummary())

	assert.Contains(t, got, "Acceptance Testing Results")
	assert.Contains(t, got, "nasm")
	assert.Contains(t, got, "aarch64")
	assert.Contains(t, got, "add_1")
	assert.Contains(t, got, "sub_2")
	assert.Contains(t, got, "✓ pass")
	assert.Contains(t, got, "✗ fail")
	assert.Contains(t, got, "output mismatch")
	assert.Contains(t, got, "unknown mnemonic")
	assert.Contains(t, got, "TOTAL")
	assert.Contains(t, got, "1 passed, 2 failed (3 total) in 3.0s")

	// The full failure detail follows the table: the whole diff for output
	// mismatches and the verbatim stage diagnostic for stage failures.
	assert.Contains(t, got, "FAIL sub_2/nasm")
	assert.Contains(t, got, "-hello")
	assert.Contains(t, got, "+hellp")
	assert.Contains(t, got, "FAIL add_1/aarch64")
	assert.Contains(t, got, "stage:     assemble")
	assert.Contains(t, got, "command:   aarch64-linux-gnu-as out.s")
	assert.Contains(t, got, "exit code: 1")
	assert.Contains(t, got, "more context")
}

func TestFormatResultsAllPass(t *testing.T) {
	summary := &types.RunSummary{RunID: "run-2", Duration: time.Second}
	summary.Record(&types.TestResult{
		Case:   types.TestCase{Name: "add_1"},
		Target: "nasm-libc",
		Status: types.TestStatusPass,
	})
	summary.Finalize()

	got := renderToString(t, summary)
	assert.Contains(t, got, "✓ pass")
	assert.NotContains(t, got, "✗ fail")
	assert.NotContains(t, got, "FAIL")
	assert.Contains(t, got, "1 passed, 0 failed (1 total) in 1.0s")
}

func TestExtractKeyErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		result   *types.TestResult
		expected string
	}{
		{
			name:     "passing result",
			result:   &types.TestResult{Status: types.TestStatusPass},
			expected: "",
		},
		{
			name:     "output mismatch",
			result:   &types.TestResult{Status: types.TestStatusFail},
			expected: "output mismatch",
		},
		{
			name: "stage failure with stderr",
			result: &types.TestResult{
				Status: types.TestStatusFail,
				Stage: &types.StageError{Result: types.StageResult{
					Stage:  "compile",
					Stderr: "syntax error at line 3\ndetail\n",
				}},
			},
			expected: "compile: syntax error at line 3",
		},
		{
			name: "stage failure without stderr",
			result: &types.TestResult{
				Status: types.TestStatusFail,
				Stage: &types.StageError{Result: types.StageResult{
					Stage:    "link",
					ExitCode: 2,
				}},
			},
			expected: "stage link exited with code 2",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractKeyErrorMessage(tc.result))
		})
	}
}

func TestFirstLineTruncates(t *testing.T) {
	long := strings.Repeat("0123456789", 20)
	got := firstLine(long)
	assert.Len(t, got, 73)
	assert.Contains(t, got, "...")
}

func TestFirstLineTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("héllo wörld ", 20)
	got := firstLine(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 73, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "0.0s", formatDuration(0))
}
