package builder

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/domain/build"
	"github.com/oshokin/pkg-assembler/internal/fsutil"
)

// SumsFilename lists the BLAKE3 digest of every published artifact.
const SumsFilename = "BLAKE3SUMS"

const outputDirMode os.FileMode = 0o755

// publisher moves finished artifacts into the shared output tree.
type publisher struct {
	outputDir string
	// mu serializes moves into the output directory.
	mu sync.Mutex
}

func newPublisher(outputDir string) *publisher {
	return &publisher{outputDir: outputDir}
}

// publish moves src to <output>/<family>/<name> and returns the final path.
func (p *publisher) publish(src, family, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.outputDir, family)
	if err := os.MkdirAll(dir, outputDirMode); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	dst := filepath.Join(dir, name)
	if err := fsutil.MoveFile(src, dst); err != nil {
		return "", fmt.Errorf("publish %s: %w", name, err)
	}

	return dst, nil
}

// writeCompanion writes a small file next to published artifacts.
func (p *publisher) writeCompanion(family, name string, content []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.outputDir, family)
	if err := os.MkdirAll(dir, outputDirMode); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	return fsutil.WriteFileAtomic(filepath.Join(dir, name), config.DefaultFilePermissions, func(w io.Writer) error {
		_, err := w.Write(content)

		return err
	})
}

// clean removes everything a previous build published: family directories and the sums file.
func (p *publisher) clean(families []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, family := range families {
		if err := os.RemoveAll(filepath.Join(p.outputDir, family)); err != nil {
			return fmt.Errorf("clean %s: %w", family, err)
		}
	}

	if err := os.Remove(filepath.Join(p.outputDir, SumsFilename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clean %s: %w", SumsFilename, err)
	}

	return nil
}

// writeSums writes "<digest>  <path>" lines for every artifact, sorted by path.
// Paths are relative to the output directory.
func (p *publisher) writeSums(artifacts []build.Result) error {
	sorted := slices.Clone(artifacts)
	slices.SortFunc(sorted, func(a, b build.Result) int {
		return strings.Compare(a.ArtifactPath, b.ArtifactPath)
	})

	lines := make([]string, 0, len(sorted))
	for _, artifact := range sorted {
		lines = append(lines, artifact.Digest+"  "+filepath.ToSlash(artifact.ArtifactPath))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return fsutil.WriteFileAtomic(filepath.Join(p.outputDir, SumsFilename), config.DefaultFilePermissions, func(w io.Writer) error {
		for _, line := range lines {
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				return err
			}
		}

		return nil
	})
}

// digestFile returns the hex BLAKE3 digest and size of path.
func digestFile(path string) (string, int64, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", 0, err
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := blake3.New()

	size, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
