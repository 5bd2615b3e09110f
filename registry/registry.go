// Package registry loads the optional harness configuration file. The
// built-in target profiles are always the defaults; the file can only
// override tool names, fixed tool arguments, the emulator, and the stage
// timeout — never stage ordering or artifact names.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keclang/kecc-acceptor/targets"
)

// Registry holds the parsed overrides for one run. Read-only once loaded.
type Registry struct {
	config Config
	file   configFile
}

// Config contains registry configuration.
type Config struct {
	Log *slog.Logger
	// ConfigFile is the optional YAML overrides file; empty means built-in
	// defaults only.
	ConfigFile string
}

// Duration parses YAML scalars like "30s" through time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// targetOverride replaces selected fields of one built-in profile. Pointer
// fields distinguish "not set" from "set to empty".
type targetOverride struct {
	Assembler     string    `yaml:"assembler,omitempty"`
	AssemblerArgs *[]string `yaml:"assembler_args,omitempty"`
	Linker        string    `yaml:"linker,omitempty"`
	LinkerArgs    *[]string `yaml:"linker_args,omitempty"`
	Emulator      *string   `yaml:"emulator,omitempty"`
}

type configFile struct {
	Targets      map[string]targetOverride `yaml:"targets,omitempty"`
	StageTimeout *Duration                 `yaml:"stage_timeout,omitempty"`
}

// New loads the overrides file when configured. Unknown target names in the
// file are a configuration fault and abort the run.
func New(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	r := &Registry{config: cfg}
	if cfg.ConfigFile == "" {
		return r, nil
	}

	data, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &r.file); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	for name := range r.file.Targets {
		if _, err := targets.Parse(name); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	cfg.Log.Debug("loaded harness config", "path", cfg.ConfigFile, "overridden_targets", len(r.file.Targets))
	return r, nil
}

// Apply returns the profile with any configured overrides folded in.
// Unspecified fields keep the built-in values.
func (r *Registry) Apply(profile targets.Profile) targets.Profile {
	override, ok := r.file.Targets[profile.Name]
	if !ok {
		return profile
	}

	if override.Assembler != "" {
		profile.Assembler.Name = override.Assembler
	}
	if override.AssemblerArgs != nil {
		profile.Assembler.Args = append([]string{}, *override.AssemblerArgs...)
	}
	if override.Linker != "" {
		profile.Linker.Name = override.Linker
	}
	if override.LinkerArgs != nil {
		profile.Linker.Args = append([]string{}, *override.LinkerArgs...)
	}
	if override.Emulator != nil {
		profile.Emulator = *override.Emulator
	}
	return profile
}

// ApplyAll folds overrides into each selected profile.
func (r *Registry) ApplyAll(profiles []targets.Profile) []targets.Profile {
	out := make([]targets.Profile, len(profiles))
	for i, p := range profiles {
		out[i] = r.Apply(p)
	}
	return out
}

// StageTimeout returns the configured stage timeout, or fallback when the
// file does not set one.
func (r *Registry) StageTimeout(fallback time.Duration) time.Duration {
	if r.file.StageTimeout == nil {
		return fallback
	}
	return time.Duration(*r.file.StageTimeout)
}
