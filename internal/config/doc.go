// Package config defines the explicit build configuration record passed to
// the orchestrator and helpers to load, validate and save it as YAML.
//
// Environment overrides (BUILD_WINDOWS, PKG_ASSEMBLER_DISTRO) are folded into
// the record once, at the CLI edge, by ApplyEnvironment. Nothing below the
// command layer reads the environment.
package config
