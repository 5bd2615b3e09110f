// Package compare checks captured program output against golden transcripts.
package compare

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/keclang/kecc-acceptor/types"
)

// Normalize trims leading and trailing whitespace. Internal whitespace and
// line structure are preserved; the pass/fail decision only ever considers
// the trimmed texts.
func Normalize(text string) string {
	return strings.TrimSpace(text)
}

// Outputs compares expected against actual output. On mismatch the outcome
// carries a line-based unified diff of the un-normalized originals, so a
// test author sees literal file content rather than the trimmed form.
func Outputs(expected, actual string) types.ComparisonOutcome {
	if Normalize(expected) == Normalize(actual) {
		return types.ComparisonOutcome{Passed: true}
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		// SplitLines never produces input GetUnifiedDiffString rejects; fall
		// back to the raw texts rather than losing the mismatch.
		text = "expected:\n" + expected + "\nactual:\n" + actual
	}
	return types.ComparisonOutcome{Passed: false, Diff: text}
}
