package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func TestDiscoverSortsByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "while_1.kc")
	writeFile(t, dir, "add_1.kc")
	writeFile(t, dir, "print_2.kc")
	writeFile(t, dir, "add_1.expected")

	cases, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, cases, 3)

	assert.Equal(t, "add_1", cases[0].Name)
	assert.Equal(t, "print_2", cases[1].Name)
	assert.Equal(t, "while_1", cases[2].Name)

	assert.Equal(t, filepath.Join(dir, "add_1.kc"), cases[0].SourcePath)
	assert.Equal(t, filepath.Join(dir, "add_1.expected"), cases[0].ExpectedPath)
}

func TestDiscoverDoesNotRequireExpectedFiles(t *testing.T) {
	// The expected-file existence check is deferred to run time.
	dir := t.TempDir()
	writeFile(t, dir, "orphan.kc")

	cases, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, filepath.Join(dir, "orphan.expected"), cases[0].ExpectedPath)
}

func TestDiscoverIgnoresNonSourceEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "t.kc")
	writeFile(t, dir, "t.expected")
	writeFile(t, dir, "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.kc"), 0o755))

	cases, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "t", cases[0].Name)
}

func TestDiscoverEmptyDirectoryIsFatal(t *testing.T) {
	_, err := Discover(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .kc tests found")
}

func TestDiscoverMissingDirectory(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
