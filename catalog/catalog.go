// Package catalog discovers test cases: source files paired with their
// golden-output transcripts.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/keclang/kecc-acceptor/types"
)

const (
	// SourceExt is the test source extension.
	SourceExt = ".kc"
	// ExpectedExt is the golden transcript extension, sibling to the source
	// with the same stem.
	ExpectedExt = ".expected"
)

// Discover returns the test cases under testsDir, sorted lexicographically
// by file name so runs are deterministic. Existence of the expected file is
// deliberately not checked here; that check is deferred to run time, where a
// missing transcript is a fatal error.
// An empty catalog is an error, not a vacuous pass.
func Discover(testsDir string) ([]types.TestCase, error) {
	entries, err := os.ReadDir(testsDir)
	if err != nil {
		return nil, fmt.Errorf("reading tests directory %s: %w", testsDir, err)
	}

	var cases []types.TestCase
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), SourceExt) {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), SourceExt)
		cases = append(cases, types.TestCase{
			Name:         stem,
			SourcePath:   filepath.Join(testsDir, entry.Name()),
			ExpectedPath: filepath.Join(testsDir, stem+ExpectedExt),
		})
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("no %s tests found under %s", SourceExt, testsDir)
	}

	sort.Slice(cases, func(i, j int) bool { return cases[i].Name < cases[j].Name })
	return cases, nil
}
