package bundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/pkg-assembler/internal/fsutil"
)

// BundleMode is the permission of a finished bundle.
const BundleMode os.FileMode = 0o755

// Assemble writes stub bytes followed by image bytes to outPath.
// The result appears at outPath through a single rename, executable.
func Assemble(stubPath, imagePath, outPath string) error {
	return fsutil.WriteFileAtomic(outPath, BundleMode, func(w io.Writer) error {
		for _, part := range []string{stubPath, imagePath} {
			if err := appendFile(w, part); err != nil {
				return err
			}
		}

		return nil
	})
}

func appendFile(w io.Writer, name string) error {
	f, err := os.Open(filepath.Clean(name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}

	defer func() {
		_ = f.Close()
	}()

	if _, err = io.Copy(w, f); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}

	return nil
}
