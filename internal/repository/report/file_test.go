package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/pkg-assembler/internal/domain/build"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.yaml"))
	r, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, r)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns an equal report.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := ForOutputDir(dir)

	started := time.Now().UTC().Truncate(time.Second)
	want := &build.Report{
		Version:    "0.1.0",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Host: build.Host{
			OS:     "linux",
			Arch:   "x86_64",
			Distro: "debian",
			Tools:  []string{"dpkg-deb"},
		},
		Results: []build.Result{
			build.Succeeded(build.TargetLinuxDeb, "builtin", "linux/pygenius-ai_1.0.0_all.deb", 2048, "af13"),
			build.Skipped(build.TargetWindowsExe, build.ErrPlatformMismatch),
		},
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.Results, got.Results)
	require.Equal(t, want.Host, got.Host)
	require.True(t, want.StartedAt.Equal(got.StartedAt))
	require.True(t, got.Success())

	_, err = os.Stat(filepath.Join(dir, DefaultFilename))
	require.NoError(t, err)
}

// TestFileRepository_Corrupt reports undecodable content.
func TestFileRepository_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte("results: [unterminated"), 0o600))

	_, err := NewFileRepository(path).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
