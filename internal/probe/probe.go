package probe

import (
	"maps"
	"slices"
)

// Tools the assembler knows how to use.
const (
	ToolDpkgDeb      = "dpkg-deb"
	ToolAppImageTool = "appimagetool"
	ToolMksquashfs   = "mksquashfs"
	ToolPyInstaller  = "pyinstaller"
)

// DefaultTools returns every tool the build strategies may ask about.
func DefaultTools() []string {
	return []string{ToolDpkgDeb, ToolAppImageTool, ToolMksquashfs, ToolPyInstaller}
}

// Availability is the result of a single probe.
type Availability struct {
	// OS and Arch describe the probed platform.
	OS   string
	Arch string
	// Distro is the detected or overridden distribution.
	Distro Distro
	// tools maps every requested tool to its resolved path, "" when absent.
	tools map[string]string
}

// Probe resolves tools on p and identifies its distribution.
// A non-empty valid override replaces detection.
func Probe(p Platform, tools []string, override string) Availability {
	result := Availability{
		OS:    p.OS(),
		Arch:  p.Arch(),
		tools: make(map[string]string, len(tools)),
	}

	for _, tool := range tools {
		path, _ := p.LookPath(tool)
		result.tools[tool] = path
	}

	result.Distro = DetectDistro(p)

	if override != "" {
		if distro, err := ParseDistro(override); err == nil {
			result.Distro = distro
		}
	}

	return result
}

// Has reports whether tool was resolved.
func (a Availability) Has(tool string) bool {
	return a.tools[tool] != ""
}

// Path returns the resolved path of tool or "".
func (a Availability) Path(tool string) string {
	return a.tools[tool]
}

// Tools returns the probed tool names in sorted order.
func (a Availability) Tools() []string {
	return slices.Sorted(maps.Keys(a.tools))
}

// WithTool returns a copy of a where tool resolves to path.
func (a Availability) WithTool(tool, path string) Availability {
	tools := maps.Clone(a.tools)
	if tools == nil {
		tools = make(map[string]string, 1)
	}

	tools[tool] = path
	a.tools = tools

	return a
}

// MachineArch converts a GOARCH value into the uname-style name used by bundle runtimes.
func MachineArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	case "arm":
		return "armhf"
	default:
		return goarch
	}
}
