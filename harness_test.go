package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keclang/kecc-acceptor/logging"
	"github.com/keclang/kecc-acceptor/targets"
	"github.com/keclang/kecc-acceptor/toolchain"
	"github.com/keclang/kecc-acceptor/types"
)

// fakeEnv fabricates a source tree, a build tree and a working toolchain out
// of shell scripts, enough to drive a full run end to end.
type fakeEnv struct {
	sourceRoot string
	buildRoot  string
	testsDir   string
	resolver   toolchain.MapResolver
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
}

// newFakeEnv builds an environment whose linked executables print stdout and
// exit 0.
func newFakeEnv(t *testing.T, stdout string) *fakeEnv {
	t.Helper()

	sourceRoot := t.TempDir()
	testsDir := filepath.Join(sourceRoot, "tests")
	require.NoError(t, os.MkdirAll(testsDir, 0o755))

	buildRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(buildRoot, "src"), 0o755))
	writeScript(t, filepath.Join(buildRoot, "src", "keccc"), "echo 'fake assembly' > out.s\n")

	tooldir := t.TempDir()
	assembler := filepath.Join(tooldir, "fake-as")
	writeScript(t, assembler, `out=""
prev=""
for a in "$@"; do
  [ "$prev" = "-o" ] && out="$a"
  prev="$a"
done
echo obj > "$out"
`)

	payload := filepath.Join(tooldir, "payload")
	writeScript(t, payload, fmt.Sprintf("printf '%s'\nexit 0\n", stdout))

	linker := filepath.Join(tooldir, "fake-ld")
	writeScript(t, linker, fmt.Sprintf(`out=""
prev=""
for a in "$@"; do
  [ "$prev" = "-o" ] && out="$a"
  prev="$a"
done
cp %s "$out"
chmod +x "$out"
`, payload))

	return &fakeEnv{
		sourceRoot: sourceRoot,
		buildRoot:  buildRoot,
		testsDir:   testsDir,
		resolver: toolchain.MapResolver{
			"nasm": assembler,
			"gcc":  linker,
		},
	}
}

// addCase writes a source/expected pair into the libc-linked tests directory.
func (e *fakeEnv) addCase(t *testing.T, name, expected string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.testsDir, name+".kc"), []byte("int main() { return 0; }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(e.testsDir, name+".expected"), []byte(expected), 0o644))
}

func newTestConfig(t *testing.T, env *fakeEnv) *Config {
	t.Helper()
	profile, err := targets.Parse("nasm-libc")
	require.NoError(t, err)

	return &Config{
		SourceRoot:   env.sourceRoot,
		BuildRoot:    env.buildRoot,
		CompilerPath: filepath.Join(env.buildRoot, "src", "keccc"),
		Targets:      []targets.Profile{profile},
		LogDir:       t.TempDir(),
		Concurrency:  1,
		Log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newTestHarness(t *testing.T, env *fakeEnv, cfg *Config) *Harness {
	t.Helper()
	h, err := New(cfg, "test")
	require.NoError(t, err)
	h.resolver = env.resolver
	return h
}

func runDir(t *testing.T, logDir string) string {
	t.Helper()
	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Name(), logging.RunDirectoryPrefix)
	return filepath.Join(logDir, entries[0].Name())
}

func TestRunAllPass(t *testing.T) {
	env := newFakeEnv(t, "42\\n")
	env.addCase(t, "add_1", "42\n")
	env.addCase(t, "sub_2", "42\n")

	cfg := newTestConfig(t, env)
	h := newTestHarness(t, env, cfg)

	require.NoError(t, h.Run(context.Background()))

	summary := h.Summary()
	require.NotNil(t, summary)
	assert.Equal(t, types.TestStatusPass, summary.Status)
	assert.Equal(t, 2, summary.Stats.Total)
	assert.Equal(t, 2, summary.Stats.Passed)
	assert.Equal(t, 0, summary.Stats.Failed)

	// Cases run in lexicographic order.
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "add_1", summary.Results[0].Case.Name)
	assert.Equal(t, "sub_2", summary.Results[1].Case.Name)

	dir := runDir(t, cfg.LogDir)
	all, err := os.ReadFile(filepath.Join(dir, "all.log"))
	require.NoError(t, err)
	assert.Contains(t, string(all), "PASS add_1/nasm-libc")
	assert.Contains(t, string(all), "PASS sub_2/nasm-libc")
}

func TestRunOutputMismatch(t *testing.T) {
	env := newFakeEnv(t, "42\\n")
	env.addCase(t, "add_1", "7\n")

	cfg := newTestConfig(t, env)
	h := newTestHarness(t, env, cfg)

	consolePath := filepath.Join(t.TempDir(), "console.txt")
	console, err := os.Create(consolePath)
	require.NoError(t, err)
	h.formatter = &ConsoleResultFormatter{out: console}

	err = h.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))

	// The diff reaches the console, not just the failed/ log file.
	require.NoError(t, console.Close())
	out, err := os.ReadFile(consolePath)
	require.NoError(t, err)
	assert.Contains(t, string(out), "FAIL add_1/nasm-libc")
	assert.Contains(t, string(out), "-7")
	assert.Contains(t, string(out), "+42")

	summary := h.Summary()
	require.NotNil(t, summary)
	assert.Equal(t, types.TestStatusFail, summary.Status)
	assert.Equal(t, 1, summary.Stats.Failed)

	// A failing pipeline leaves a diagnostic file behind.
	dir := runDir(t, cfg.LogDir)
	diag, err := os.ReadFile(filepath.Join(dir, "failed", "add_1_nasm-libc.log"))
	require.NoError(t, err)
	assert.Contains(t, string(diag), "-7")
	assert.Contains(t, string(diag), "+42")
}

func TestRunMissingCompiler(t *testing.T) {
	env := newFakeEnv(t, "42\\n")
	env.addCase(t, "add_1", "42\n")

	cfg := newTestConfig(t, env)
	cfg.CompilerPath = filepath.Join(env.buildRoot, "src", "missing")
	h := newTestHarness(t, env, cfg)

	err := h.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.Contains(t, err.Error(), "compiler not found")
}

func TestRunMissingTool(t *testing.T) {
	env := newFakeEnv(t, "42\\n")
	env.addCase(t, "add_1", "42\n")
	delete(env.resolver, "gcc")

	cfg := newTestConfig(t, env)
	h := newTestHarness(t, env, cfg)

	err := h.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.Contains(t, err.Error(), "gcc")
}

func TestRunNoTests(t *testing.T) {
	env := newFakeEnv(t, "42\\n")

	cfg := newTestConfig(t, env)
	h := newTestHarness(t, env, cfg)

	err := h.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.Contains(t, err.Error(), "no .kc tests found")
}

func TestRunKeepsConfiguredWorkDir(t *testing.T) {
	env := newFakeEnv(t, "42\\n")
	env.addCase(t, "add_1", "42\n")

	cfg := newTestConfig(t, env)
	cfg.WorkDir = filepath.Join(t.TempDir(), "work")
	cfg.KeepArtifacts = true
	h := newTestHarness(t, env, cfg)

	require.NoError(t, h.Run(context.Background()))

	// With artifact retention the per-test directory survives the run.
	_, err := os.Stat(filepath.Join(cfg.WorkDir, "nasm-libc", "add_1", targets.AsmFile))
	require.NoError(t, err)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, "test")
	require.Error(t, err)
}

func TestNewRejectsBadConfigFile(t *testing.T) {
	env := newFakeEnv(t, "42\\n")
	cfg := newTestConfig(t, env)

	path := filepath.Join(t.TempDir(), "acceptor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets:\n  bogus:\n    linker: cc\n"), 0o644))
	cfg.ConfigFile = path

	_, err := New(cfg, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}
