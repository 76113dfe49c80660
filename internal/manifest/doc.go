// Package manifest stages the files of an installable package.
//
// A Builder reads the application files from a source filesystem, renders
// the generated files (control metadata, hook scripts, launcher wrapper,
// desktop integration, documentation) and returns an immutable
// PackageManifest whose entries are partitioned into control and data roles.
package manifest
