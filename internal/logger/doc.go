// Package logger wraps zap for the assembler binaries.
//
// A global sugared logger writes console-encoded lines to stderr so that
// build summaries printed on stdout stay machine-readable. Services store a
// named child logger in the context (WithName/WithKV) and log through the
// package-level helpers (Info, InfoKV, Warnf, ErrorKV, ...).
package logger
