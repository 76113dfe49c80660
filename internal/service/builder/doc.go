// Package builder implements the assembler workflow.
//
// Run loads the configuration, takes the output directory lock, probes the
// host, stages the package manifest and then builds every requested target
// in turn. Each target tries its strategies in order. A target that cannot
// run on this host is skipped, and a target whose strategies all fail is
// recorded as failed without stopping the others. Published artifacts are
// moved into the output tree by a single rename, hashed with BLAKE3 and
// listed in a persisted report.
package builder
