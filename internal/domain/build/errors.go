package build

import "errors"

var (
	// ErrMissingSourceFile is returned when a required input file of the manifest does not exist.
	ErrMissingSourceFile = errors.New("missing source file")
	// ErrInvalidMemberName is returned when an archive member name does not fit the fixed header field.
	ErrInvalidMemberName = errors.New("invalid archive member name")
	// ErrDownloadFailure is returned when every mirror of a downloadable component failed.
	ErrDownloadFailure = errors.New("download failure")
	// ErrMissingDependency is returned when a required external tool is absent and nothing can replace it.
	ErrMissingDependency = errors.New("missing dependency")
	// ErrToolInvocationFailure is returned when an external tool exits with a non-zero status.
	ErrToolInvocationFailure = errors.New("tool invocation failure")
	// ErrPlatformMismatch marks a target that does not apply to the current host.
	ErrPlatformMismatch = errors.New("platform mismatch")
)
