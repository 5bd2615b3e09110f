// Package targets defines the closed set of build profiles the harness can
// drive. A profile fixes everything target-specific about a pipeline run:
// how the compiler is told which architecture to emit, which assembler and
// linker to invoke, which runtime-support sources must be assembled and
// linked alongside the program, and whether the produced executable runs
// natively or under a user-mode emulator.
package targets

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Artifact names inside a working directory. The compiler always writes its
// assembly to AsmFile in the current directory; the later stages consume
// these fixed names.
const (
	AsmFile       = "out.s"
	ProgramObject = "out.o"
	Executable    = "out"
)

// runtimeSources are the fixed runtime-support units every freestanding
// profile assembles and links, in order: startup/entry code first, then the
// integer, character and string printers.
var runtimeSources = []string{"start.s", "printint.s", "printchar.s", "printstring.s"}

// Tool names a required executable together with the fixed arguments that
// precede any per-invocation files.
type Tool struct {
	Name string
	Args []string
}

// Profile is one architecture/toolchain build profile.
type Profile struct {
	Name        string
	Description string

	// TestsSubdir is where this profile's test cases live, relative to the
	// source root. The multi-target layout keeps them one level deeper than
	// the original libc-linked layout.
	TestsSubdir string

	// CompilerTarget is the value passed to the compiler's --target flag.
	// Empty means the compiler is invoked with the source file alone.
	CompilerTarget string

	// Assembler assembles one .s file into a relocatable object.
	Assembler Tool

	// Linker combines the program object and any runtime objects into an
	// executable. For the libc-linked profile this is the system C compiler
	// acting purely as a link driver.
	Linker Tool

	// RuntimeDir holds this profile's runtime-support sources, relative to
	// the source root. Empty means the profile links against the system
	// runtime instead of freestanding startup code.
	RuntimeDir string

	// Emulator wraps execution of the produced binary. Empty means the
	// binary runs natively.
	Emulator string
}

var profiles = []Profile{
	{
		Name:           "nasm",
		Description:    "native x86-64, freestanding (nasm + ld)",
		TestsSubdir:    filepath.Join("tests", "testcases"),
		CompilerTarget: "nasm",
		Assembler:      Tool{Name: "nasm", Args: []string{"-f", "elf64"}},
		Linker:         Tool{Name: "ld"},
		RuntimeDir:     filepath.Join("src", "rt", "nasm"),
	},
	{
		Name:           "aarch64",
		Description:    "cross aarch64, freestanding, executed under qemu",
		TestsSubdir:    filepath.Join("tests", "testcases"),
		CompilerTarget: "aarch64",
		Assembler:      Tool{Name: "aarch64-linux-gnu-as"},
		Linker:         Tool{Name: "aarch64-linux-gnu-ld"},
		RuntimeDir:     filepath.Join("src", "rt", "aarch64"),
		Emulator:       "qemu-aarch64",
	},
	{
		Name:        "nasm-libc",
		Description: "native x86-64, libc-linked (nasm + gcc link driver)",
		TestsSubdir: "tests",
		Assembler:   Tool{Name: "nasm", Args: []string{"-f", "elf64"}},
		Linker:      Tool{Name: "gcc", Args: []string{"-no-pie"}},
	},
}

// All returns every known profile.
func All() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// Parse resolves a profile by name.
func Parse(name string) (Profile, error) {
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("unknown target %q (valid targets: %s)", name, strings.Join(Names(), ", "))
}

// ParseList resolves a --target value: a single name, a comma-separated
// list, or "all".
func ParseList(value string) ([]Profile, error) {
	if value == "all" {
		return All(), nil
	}
	var out []Profile
	seen := make(map[string]bool)
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if seen[name] {
			continue
		}
		p, err := Parse(name)
		if err != nil {
			return nil, err
		}
		seen[name] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no targets selected from %q", value)
	}
	return out, nil
}

// Names lists the valid --target values.
func Names() []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names
}

// TestsDir returns the directory holding this profile's test cases.
func (p Profile) TestsDir(sourceRoot string) string {
	return filepath.Join(sourceRoot, p.TestsSubdir)
}

// CompileArgs builds the compiler invocation arguments for one test source.
func (p Profile) CompileArgs(sourcePath string) []string {
	if p.CompilerTarget == "" {
		return []string{sourcePath}
	}
	return []string{"--target", p.CompilerTarget, sourcePath}
}

// AssembleArgs builds the assembler invocation for one source/object pair.
func (p Profile) AssembleArgs(sourcePath, objectPath string) []string {
	args := append([]string{}, p.Assembler.Args...)
	return append(args, sourcePath, "-o", objectPath)
}

// LinkArgs builds the linker invocation combining the program object and the
// runtime objects into the executable.
func (p Profile) LinkArgs(objects []string, outputPath string) []string {
	args := append([]string{}, p.Linker.Args...)
	args = append(args, objects...)
	return append(args, "-o", outputPath)
}

// RuntimeSourcePaths returns the ordered runtime-support sources for this
// profile, or nil for libc-linked profiles.
func (p Profile) RuntimeSourcePaths(sourceRoot string) []string {
	if p.RuntimeDir == "" {
		return nil
	}
	paths := make([]string, len(runtimeSources))
	for i, name := range runtimeSources {
		paths[i] = filepath.Join(sourceRoot, p.RuntimeDir, name)
	}
	return paths
}

// RuntimeObjects returns the object file names the runtime sources assemble
// to, in link order.
func (p Profile) RuntimeObjects() []string {
	if p.RuntimeDir == "" {
		return nil
	}
	objs := make([]string, len(runtimeSources))
	for i, name := range runtimeSources {
		objs[i] = strings.TrimSuffix(name, ".s") + ".o"
	}
	return objs
}

// ExecuteArgs builds the command that runs the produced executable, wrapping
// it in the emulator when the profile is cross-architecture.
func (p Profile) ExecuteArgs(executablePath string) []string {
	if p.Emulator != "" {
		return []string{p.Emulator, executablePath}
	}
	return []string{executablePath}
}

// RequiredTools lists the external executables this profile needs from the
// environment, excluding the compiler under test (which is located under the
// build root, not on the search path).
func (p Profile) RequiredTools() []string {
	tools := []string{p.Assembler.Name, p.Linker.Name}
	if p.Emulator != "" {
		tools = append(tools, p.Emulator)
	}
	return tools
}
