// Package version exposes build metadata of pkg-assembler.
//
// Version, Commit and BuildTime are injected with -ldflags at release time.
// The package version written into produced packages is configured
// separately and has nothing to do with these values.
package version
