package build

import (
	"errors"
	"fmt"
)

// TargetID names a buildable artifact kind.
type TargetID string

const (
	// TargetWindowsExe is a frozen Windows executable.
	TargetWindowsExe TargetID = "windows-exe"
	// TargetLinuxDeb is a Debian package.
	TargetLinuxDeb TargetID = "linux-deb"
	// TargetLinuxAppImage is a self-executing Linux bundle.
	TargetLinuxAppImage TargetID = "linux-appimage"
)

// Outcome is the terminal state of a target build.
type Outcome string

const (
	// OutcomeSuccess means an artifact was published.
	OutcomeSuccess Outcome = "success"
	// OutcomeSkipped means the target does not apply to this host.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means every strategy of the target failed.
	OutcomeFailed Outcome = "failed"
)

// Result describes what happened to one requested target.
type Result struct {
	Target       TargetID `yaml:"target"`
	Outcome      Outcome  `yaml:"outcome"`
	Strategy     string   `yaml:"strategy,omitempty"`
	ArtifactPath string   `yaml:"artifact,omitempty"`
	Size         int64    `yaml:"size,omitempty"`
	Digest       string   `yaml:"blake3,omitempty"`
	Message      string   `yaml:"message,omitempty"`
}

// Succeeded records a published artifact.
func Succeeded(target TargetID, strategy, artifactPath string, size int64, digest string) Result {
	return Result{
		Target:       target,
		Outcome:      OutcomeSuccess,
		Strategy:     strategy,
		ArtifactPath: artifactPath,
		Size:         size,
		Digest:       digest,
	}
}

// Skipped records a target that was not attempted.
func Skipped(target TargetID, reason error) Result {
	return Result{
		Target:  target,
		Outcome: OutcomeSkipped,
		Message: reason.Error(),
	}
}

// Failed records a target whose strategies were all exhausted.
func Failed(target TargetID, cause error) Result {
	return Result{
		Target:  target,
		Outcome: OutcomeFailed,
		Message: cause.Error(),
	}
}

// FromError classifies a build error: platform mismatches are skips, everything else fails.
func FromError(target TargetID, err error) Result {
	if errors.Is(err, ErrPlatformMismatch) {
		return Skipped(target, err)
	}

	return Failed(target, err)
}

// String renders the result as a single summary cell.
func (r Result) String() string {
	if r.Outcome == OutcomeSuccess {
		return fmt.Sprintf("%s: %s (%s)", r.Target, r.ArtifactPath, r.Strategy)
	}

	return fmt.Sprintf("%s: %s: %s", r.Target, r.Outcome, r.Message)
}
