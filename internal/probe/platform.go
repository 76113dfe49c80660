package probe

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Platform gives read-only access to the facts of a host.
type Platform interface {
	// OS returns the GOOS-style operating system name.
	OS() string
	// Arch returns the GOARCH-style architecture name.
	Arch() string
	// LookPath resolves a tool on the execution path.
	LookPath(tool string) (string, bool)
	// Exists reports whether an absolute path exists.
	Exists(path string) bool
}

// FSPlatform resolves tools and marker files through a billy filesystem.
type FSPlatform struct {
	fs         billy.Filesystem
	goos       string
	goarch     string
	searchPath []string
}

// NewFSPlatform describes a host backed by fs whose execution path is searchPath.
func NewFSPlatform(fs billy.Filesystem, goos, goarch string, searchPath []string) *FSPlatform {
	return &FSPlatform{
		fs:         fs,
		goos:       goos,
		goarch:     goarch,
		searchPath: searchPath,
	}
}

// HostPlatform describes the machine the assembler runs on.
//
//nolint:ireturn // Callers only need the interface.
func HostPlatform() Platform {
	if runtime.GOOS == "windows" {
		return windowsPlatform{}
	}

	return NewFSPlatform(osfs.New("/"), runtime.GOOS, runtime.GOARCH, filepath.SplitList(os.Getenv("PATH")))
}

// OS implements Platform.
func (p *FSPlatform) OS() string {
	return p.goos
}

// Arch implements Platform.
func (p *FSPlatform) Arch() string {
	return p.goarch
}

// LookPath returns the first regular file named tool with an execute bit in the search path.
func (p *FSPlatform) LookPath(tool string) (string, bool) {
	for _, dir := range p.searchPath {
		if dir == "" {
			continue
		}

		candidate := filepath.Join(dir, tool)

		info, err := p.fs.Stat(candidate)
		if err != nil {
			continue
		}

		if info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
			return candidate, true
		}
	}

	return "", false
}

// Exists implements Platform.
func (p *FSPlatform) Exists(path string) bool {
	_, err := p.fs.Stat(path)

	return err == nil
}

// windowsPlatform relies on exec.LookPath for PATHEXT handling.
type windowsPlatform struct{}

func (windowsPlatform) OS() string {
	return runtime.GOOS
}

func (windowsPlatform) Arch() string {
	return runtime.GOARCH
}

func (windowsPlatform) LookPath(tool string) (string, bool) {
	path, err := exec.LookPath(tool)

	return path, err == nil
}

func (windowsPlatform) Exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
