//go:build unix

package builder

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStageFile_ControlDirectoryIgnoresUmask keeps DEBIAN at 0755 as dpkg-deb requires.
// It changes the process umask, so it must not run in parallel.
func TestStageFile_ControlDirectoryIgnoresUmask(t *testing.T) {
	previous := syscall.Umask(0o027)
	defer syscall.Umask(previous)

	root := filepath.Join(t.TempDir(), "root")

	require.NoError(t, stageFile(root, "DEBIAN/postinst", []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, stageFile(root, "usr/share/doc/pygenius/copyright", []byte("MIT\n"), 0o644))

	for _, dir := range []string{"", "DEBIAN", "usr", "usr/share", "usr/share/doc", "usr/share/doc/pygenius"} {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(dir)))
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o755), info.Mode().Perm(), dir)
	}

	postinst, err := os.Stat(filepath.Join(root, "DEBIAN", "postinst"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), postinst.Mode().Perm())

	copyright, err := os.Stat(filepath.Join(root, "usr", "share", "doc", "pygenius", "copyright"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), copyright.Mode().Perm())
}
