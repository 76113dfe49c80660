package builder

import (
	"context"
	"path/filepath"
	"slices"

	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/domain/build"
	"github.com/oshokin/pkg-assembler/internal/fetch"
	"github.com/oshokin/pkg-assembler/internal/manifest"
	"github.com/oshokin/pkg-assembler/internal/probe"
	"github.com/oshokin/pkg-assembler/internal/toolexec"
)

// Output tree families.
const (
	FamilyLinux   = "linux"
	FamilyWindows = "windows"
)

// Strategy is one way of producing a target's artifact.
type Strategy interface {
	// Name identifies the strategy in logs and reports.
	Name() string
	// Build writes the artifact to job.OutputPath. It returns the label of the
	// method actually used, which may be more specific than Name.
	Build(ctx context.Context, job *Job) (string, error)
}

// Target is a buildable artifact kind with its ordered strategies.
type Target struct {
	ID build.TargetID
	// Family is the output subdirectory.
	Family string
	// Platforms lists the GOOS values the target is native to.
	Platforms []string
	// NeedsManifest marks targets that package the staged manifest.
	NeedsManifest bool
	// ArtifactName returns the published file name.
	ArtifactName func(job *Job) string
	// Companions returns extra files published next to the artifact.
	Companions func(cfg *config.Config) map[string][]byte
	Strategies []Strategy
}

// Applicable reports whether the target can be built on the probed host.
func (t *Target) Applicable(hostOS string, force bool) bool {
	return force || slices.Contains(t.Platforms, hostOS)
}

// Job is everything a strategy needs for one target build.
type Job struct {
	Config       *config.Config
	Manifest     *manifest.PackageManifest
	Availability probe.Availability
	Runner       toolexec.Runner
	Fetcher      *fetch.Fetcher
	// WorkDir is private to this target and removed afterwards.
	WorkDir string
	// ArtifactName is the file name the artifact is published under.
	ArtifactName string
}

// OutputPath is where strategies must leave the finished artifact.
func (j *Job) OutputPath() string {
	return filepath.Join(j.WorkDir, j.ArtifactName)
}

// BundleArch returns the uname-style architecture of the probed host.
func (j *Job) BundleArch() string {
	return probe.MachineArch(j.Availability.Arch)
}

// DefaultTargets returns the Windows executable, the Debian package and the
// Linux bundle targets in build order.
func DefaultTargets() []*Target {
	return []*Target{
		windowsTarget(),
		debTarget(),
		appImageTarget(),
	}
}

// selectTargets filters targets by the configured IDs, keeping build order.
func selectTargets(targets []*Target, ids []string) ([]*Target, error) {
	if len(ids) == 0 {
		return targets, nil
	}

	known := make(map[build.TargetID]struct{}, len(targets))
	for _, t := range targets {
		known[t.ID] = struct{}{}
	}

	for _, id := range ids {
		if _, ok := known[build.TargetID(id)]; !ok {
			return nil, unknownTargetError(id, targets)
		}
	}

	selected := make([]*Target, 0, len(ids))

	for _, t := range targets {
		if slices.Contains(ids, string(t.ID)) {
			selected = append(selected, t)
		}
	}

	return selected, nil
}
