package deb

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/oshokin/pkg-assembler/internal/archive/ar"
)

// TarEntry describes one entry of an inner tarball.
type TarEntry struct {
	Name  string
	Mode  os.FileMode
	Size  int64
	Dir   bool
	Owner string
}

// ReadTarball lists the entries of a gzip-compressed tar member.
func ReadTarball(data []byte) ([]TarEntry, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	tr := tar.NewReader(gz)

	var entries []TarEntry

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}

		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}

		entries = append(entries, TarEntry{
			Name:  hdr.Name,
			Mode:  os.FileMode(hdr.Mode).Perm(),
			Size:  hdr.Size,
			Dir:   hdr.Typeflag == tar.TypeDir,
			Owner: hdr.Uname + ":" + hdr.Gname,
		})
	}
}

// ReadFile parses the container at path.
func ReadFile(path string) ([]ar.Member, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator.
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = f.Close()
	}()

	return ar.ReadAll(f)
}
