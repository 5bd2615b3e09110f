// Package toolchain locates the external executables a build profile needs.
// Resolution runs once, before any test executes, so a misconfigured
// environment aborts the run instead of surfacing as spurious per-test
// failures.
package toolchain

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/keclang/kecc-acceptor/targets"
)

// Resolver locates an executable by name.
type Resolver interface {
	Resolve(name string) (string, error)
}

// NotFoundError reports a required tool missing from the environment.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("required tool %q not found", e.Name)
}

// PathResolver resolves tools against the process search path.
type PathResolver struct{}

// Resolve implements the Resolver interface via exec.LookPath.
func (PathResolver) Resolve(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &NotFoundError{Name: name}
	}
	return path, nil
}

// MapResolver resolves tools from a fixed map. Used in tests to inject a
// toolchain without touching the environment.
type MapResolver map[string]string

// Resolve implements the Resolver interface.
func (m MapResolver) Resolve(name string) (string, error) {
	path, ok := m[name]
	if !ok {
		return "", &NotFoundError{Name: name}
	}
	return path, nil
}

// Paths holds the resolved absolute paths for one run. Resolved once,
// read-only thereafter; safe to share across concurrent pipelines.
type Paths struct {
	Compiler string
	Tools    map[string]string
}

// Tool returns the resolved path for a tool name. Resolution happens up
// front, so a miss here is a programming error in the stage plan.
func (p Paths) Tool(name string) string {
	path, ok := p.Tools[name]
	if !ok {
		panic(fmt.Sprintf("tool %q was not resolved", name))
	}
	return path
}

// ResolveAll verifies the compiler binary exists and resolves every tool the
// selected profiles require. Any miss is fatal for the whole run.
func ResolveAll(r Resolver, compilerPath string, profiles []targets.Profile) (Paths, error) {
	info, err := os.Stat(compilerPath)
	if err != nil {
		return Paths{}, fmt.Errorf("compiler not found at %s: %w", compilerPath, err)
	}
	if info.IsDir() {
		return Paths{}, fmt.Errorf("compiler path %s is a directory", compilerPath)
	}

	paths := Paths{
		Compiler: compilerPath,
		Tools:    make(map[string]string),
	}
	for _, profile := range profiles {
		for _, name := range profile.RequiredTools() {
			if _, done := paths.Tools[name]; done {
				continue
			}
			path, err := r.Resolve(name)
			if err != nil {
				return Paths{}, fmt.Errorf("target %s: %w", profile.Name, err)
			}
			paths.Tools[name] = path
		}
	}
	return paths, nil
}
