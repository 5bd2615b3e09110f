package flags

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/keclang/kecc-acceptor/targets"
)

const EnvVarPrefix = "KECC_ACCEPTOR"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	SourceRoot = &cli.StringFlag{
		Name:     "source-root",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("SOURCE_ROOT"),
		Usage:    "Path to the compiler source tree (test cases and runtime sources are discovered under it)",
	}
	BuildRoot = &cli.StringFlag{
		Name:     "build-root",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("BUILD_ROOT"),
		Usage:    "Path to the build tree; the compiler binary is expected at <build-root>/src/keccc",
	}
	Target = &cli.StringFlag{
		Name:     "target",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("TARGET"),
		Usage:    fmt.Sprintf("Target profile(s) to verify: %s, a comma-separated list, or 'all'", strings.Join(targets.Names(), ", ")),
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   "",
		EnvVars: prefixEnvVars("WORKDIR"),
		Usage:   "Directory for per-test working directories (default: a temporary directory)",
	}
	LogDir = &cli.StringFlag{
		Name:    "log-dir",
		Value:   "logs",
		EnvVars: prefixEnvVars("LOG_DIR"),
		Usage:   "Directory to store per-run log output",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: prefixEnvVars("TIMEOUT"),
		Usage:   "Per-stage timeout (e.g. '30s'). A stage exceeding it is a test failure. 0 disables the timeout.",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   1,
		EnvVars: prefixEnvVars("CONCURRENCY"),
		Usage:   "Number of pipelines to run concurrently (1 = sequential)",
	}
	KeepArtifacts = &cli.BoolFlag{
		Name:    "keep-artifacts",
		Value:   false,
		EnvVars: prefixEnvVars("KEEP_ARTIFACTS"),
		Usage:   "Leave per-test working directories in place after the run",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: prefixEnvVars("CONFIG"),
		Usage:   "Path to an optional YAML file overriding toolchain commands per target (eg. 'acceptor.yaml')",
	}
	MetricsAddr = &cli.StringFlag{
		Name:    "metrics-addr",
		Value:   "",
		EnvVars: prefixEnvVars("METRICS_ADDR"),
		Usage:   "Address to serve prometheus metrics on (empty = disabled)",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz-addr",
		Value:   "",
		EnvVars: prefixEnvVars("HEALTHZ_ADDR"),
		Usage:   "Address to serve the healthz endpoint on (empty = disabled)",
	}
	Tracing = &cli.BoolFlag{
		Name:    "tracing",
		Value:   false,
		EnvVars: prefixEnvVars("TRACING"),
		Usage:   "Enable OpenTelemetry tracing export",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "The lowest log level that will be output: debug, info, warn or error",
	}
)

var requiredFlags = []cli.Flag{
	SourceRoot,
	BuildRoot,
	Target,
}

var optionalFlags = []cli.Flag{
	WorkDir,
	LogDir,
	Timeout,
	Concurrency,
	KeepArtifacts,
	ConfigFile,
	MetricsAddr,
	HealthzAddr,
	Tracing,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
