// Package fsutil contains the file publication helpers shared by the
// archive writers, the bundle assembler and the orchestrator.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// WriteFileAtomic writes a file through write into a temporary sibling of path
// and renames it into place. Nothing exists at path unless write succeeded.
func WriteFileAtomic(path string, perm os.FileMode, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}

	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}

	return nil
}

// MkdirAll creates dir and its missing parents with exactly perm. Unlike
// os.MkdirAll the result does not depend on the process umask. Existing
// directories are left untouched.
func MkdirAll(dir string, perm os.FileMode) error {
	dir = filepath.Clean(dir)

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("create %s: %w", dir, syscall.ENOTDIR)
		}

		return nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", dir, err)
	}

	if parent := filepath.Dir(dir); parent != dir {
		if err = MkdirAll(parent, perm); err != nil {
			return err
		}
	}

	if err = os.Mkdir(dir, perm); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}

		return fmt.Errorf("create %s: %w", dir, err)
	}

	if err = os.Chmod(dir, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", dir, err)
	}

	return nil
}

// MoveFile renames src to dst. When they live on different filesystems the
// content is copied into a temporary sibling of dst first, so dst still
// appears through a single rename.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("move %s: %w", src, err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	err = WriteFileAtomic(dst, info.Mode().Perm(), func(w io.Writer) error {
		_, copyErr := io.Copy(w, in)

		return copyErr
	})
	if err != nil {
		return err
	}

	return os.Remove(src)
}
