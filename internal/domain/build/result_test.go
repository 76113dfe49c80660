package build

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFromError checks that only platform mismatches become skips.
func TestFromError(t *testing.T) {
	t.Parallel()

	skipped := FromError(TargetWindowsExe, fmt.Errorf("host linux: %w", ErrPlatformMismatch))
	require.Equal(t, OutcomeSkipped, skipped.Outcome)
	require.Contains(t, skipped.Message, "host linux")

	failed := FromError(TargetLinuxAppImage, fmt.Errorf("mksquashfs: %w", ErrMissingDependency))
	require.Equal(t, OutcomeFailed, failed.Outcome)
	require.Empty(t, failed.ArtifactPath)

	require.Equal(t, OutcomeFailed, FromError(TargetLinuxDeb, errors.New("boom")).Outcome)
}

// TestSucceeded verifies the fields carried by a successful result.
func TestSucceeded(t *testing.T) {
	t.Parallel()

	r := Succeeded(TargetLinuxDeb, "builtin", "release/linux/app_1.0.0_all.deb", 42, "abc")
	require.Equal(t, OutcomeSuccess, r.Outcome)
	require.Empty(t, r.Message)
	require.Contains(t, r.String(), "builtin")
}

// TestReport_Success needs at least one successful result.
func TestReport_Success(t *testing.T) {
	t.Parallel()

	report := &Report{Results: []Result{
		Skipped(TargetWindowsExe, ErrPlatformMismatch),
		Failed(TargetLinuxAppImage, ErrMissingDependency),
	}}
	require.False(t, report.Success())
	require.Empty(t, report.Artifacts())

	report.Results = append(report.Results, Succeeded(TargetLinuxDeb, "builtin", "a.deb", 1, "d"))
	require.True(t, report.Success())
	require.Equal(t, 1, report.Count(OutcomeSuccess))
	require.Equal(t, 1, report.Count(OutcomeSkipped))
	require.Equal(t, 1, report.Count(OutcomeFailed))
	require.Len(t, report.Artifacts(), 1)
}
