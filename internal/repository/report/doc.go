// Package report persists the build report of the last assembler run.
//
// The FileRepository stores the report as YAML next to the artifacts so
// that the status command can show it later without rebuilding.
package report
