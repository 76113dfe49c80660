package deb

import (
	"archive/tar"
	"bytes"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/oshokin/pkg-assembler/internal/archive/ar"
	"github.com/oshokin/pkg-assembler/internal/manifest"
)

// Member names in the order dpkg expects them.
const (
	MemberDebianBinary = "debian-binary"
	MemberControl      = "control.tar.gz"
	MemberData         = "data.tar.gz"

	// FormatVersion is the content of the debian-binary member.
	FormatVersion = "2.0\n"

	ownerName     = "root"
	directoryMode = 0o755
)

// SourceEpoch is the timestamp stamped on every container member and tar entry.
var SourceEpoch = time.Unix(0, 0)

// Build renders the complete package into memory.
func Build(m *manifest.PackageManifest) ([]byte, error) {
	members, err := Members(m)
	if err != nil {
		return nil, err
	}

	return ar.Marshal(members)
}

// Members returns the three container members of the package.
func Members(m *manifest.PackageManifest) ([]ar.Member, error) {
	control, err := tarball(m.Control(), false)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", MemberControl, err)
	}

	data, err := tarball(m.Data(), true)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", MemberData, err)
	}

	return []ar.Member{
		member(MemberDebianBinary, []byte(FormatVersion)),
		member(MemberControl, control),
		member(MemberData, data),
	}, nil
}

// WriteFile writes the package to path. On error nothing is created at path.
func WriteFile(m *manifest.PackageManifest, path string) error {
	members, err := Members(m)
	if err != nil {
		return err
	}

	return ar.WriteFile(path, members, manifest.ModeRegular)
}

func member(name string, data []byte) ar.Member {
	return ar.Member{
		Name:    name,
		ModTime: SourceEpoch.Unix(),
		Mode:    manifest.ModeRegular,
		Data:    data,
	}
}

// tarball writes entries into a gzip-compressed tar stream.
// Data entries are rooted at "./" and preceded by their parent directories.
func tarball(entries []manifest.FileEntry, rooted bool) ([]byte, error) {
	var buf bytes.Buffer

	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}

	tw := tar.NewWriter(gz)

	if rooted {
		for _, dir := range parentDirs(entries) {
			if err = tw.WriteHeader(header(dir, tar.TypeDir, directoryMode, 0)); err != nil {
				return nil, fmt.Errorf("write directory %s: %w", dir, err)
			}
		}
	}

	for _, entry := range entries {
		name := entry.Path
		if rooted {
			name = "./" + name
		}

		if err = tw.WriteHeader(header(name, tar.TypeReg, entry.Mode, int64(len(entry.Content)))); err != nil {
			return nil, fmt.Errorf("write header %s: %w", name, err)
		}

		if _, err = tw.Write(entry.Content); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	if err = tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}

	if err = gz.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}

	return buf.Bytes(), nil
}

func header(name string, typeflag byte, mode os.FileMode, size int64) *tar.Header {
	return &tar.Header{
		Typeflag: typeflag,
		Name:     name,
		Mode:     int64(mode.Perm()),
		Size:     size,
		ModTime:  SourceEpoch,
		Uname:    ownerName,
		Gname:    ownerName,
		Format:   tar.FormatGNU,
	}
}

// parentDirs lists "./" and every ancestor directory of the entries, parents first.
func parentDirs(entries []manifest.FileEntry) []string {
	seen := map[string]struct{}{}

	for _, entry := range entries {
		for dir := path.Dir(entry.Path); dir != "." && dir != "/"; dir = path.Dir(dir) {
			seen[dir] = struct{}{}
		}
	}

	dirs := make([]string, 0, len(seen)+1)
	for dir := range seen {
		dirs = append(dirs, dir)
	}

	slices.SortFunc(dirs, func(a, b string) int {
		if depth := strings.Count(a, "/") - strings.Count(b, "/"); depth != 0 {
			return depth
		}

		return strings.Compare(a, b)
	})

	result := []string{"./"}
	for _, dir := range dirs {
		result = append(result, "./"+dir+"/")
	}

	return result
}
