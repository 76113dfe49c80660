//go:build unix

package fsutil

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMkdirAll_IgnoresUmask creates every missing level with the requested mode.
// It changes the process umask, so it must not run in parallel.
func TestMkdirAll_IgnoresUmask(t *testing.T) {
	previous := syscall.Umask(0o077)
	defer syscall.Umask(previous)

	root := t.TempDir()
	dir := filepath.Join(root, "usr", "share", "pygenius")

	require.NoError(t, MkdirAll(dir, 0o755))

	for _, level := range []string{"usr", "usr/share", "usr/share/pygenius"} {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(level)))
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o755), info.Mode().Perm(), level)
	}

	// Existing directories keep their mode.
	require.NoError(t, MkdirAll(root, 0o755))

	info, err := os.Stat(root)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

// TestMkdirAll_NotADirectory refuses to descend through a regular file.
func TestMkdirAll_NotADirectory(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	require.ErrorIs(t, MkdirAll(filepath.Join(file, "sub"), 0o755), syscall.ENOTDIR)
}
