package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var errWriteAborted = errors.New("aborted")

// TestWriteFileAtomic_Success writes content and mode through a temporary file.
func TestWriteFileAtomic_Success(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.bin")

	err := WriteFileAtomic(path, 0o755, func(w io.Writer) error {
		_, err := w.Write([]byte("payload"))

		return err
	})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "payload", string(content))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

// TestWriteFileAtomic_Failure leaves neither the target nor temporary files behind.
func TestWriteFileAtomic_Failure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	err := WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))

		return errWriteAborted
	})
	require.ErrorIs(t, err, errWriteAborted)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestMoveFile renames within one filesystem.
func TestMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")

	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))
	require.NoError(t, MoveFile(src, dst))

	_, err := os.Stat(src)
	require.ErrorIs(t, err, os.ErrNotExist)

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "x", string(content))
}
