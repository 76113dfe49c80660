package probe

import (
	"errors"
	"fmt"
	"strings"
)

// Distro identifies a Linux distribution family.
type Distro string

// Known distribution families.
const (
	DistroUnknown Distro = "unknown"
	DistroAlpine  Distro = "alpine"
	DistroArch    Distro = "arch"
	DistroFedora  Distro = "fedora"
	DistroRHEL    Distro = "rhel"
	DistroSUSE    Distro = "suse"
	DistroDebian  Distro = "debian"
)

var errUnknownDistro = errors.New("unknown distribution")

// distroMarkers is checked in order and the first existing file wins.
// Fedora ships /etc/redhat-release too, so it must come before rhel.
//
//nolint:gochecknoglobals // Fixed lookup table.
var distroMarkers = []struct {
	path   string
	distro Distro
}{
	{"/etc/alpine-release", DistroAlpine},
	{"/etc/arch-release", DistroArch},
	{"/etc/fedora-release", DistroFedora},
	{"/etc/redhat-release", DistroRHEL},
	{"/etc/SuSE-release", DistroSUSE},
	{"/etc/debian_version", DistroDebian},
}

// ParseDistro validates a distribution name.
func ParseDistro(s string) (Distro, error) {
	d := Distro(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DistroUnknown, DistroAlpine, DistroArch, DistroFedora, DistroRHEL, DistroSUSE, DistroDebian:
		return d, nil
	default:
		return DistroUnknown, fmt.Errorf("%q: %w", s, errUnknownDistro)
	}
}

// DetectDistro checks the marker files of p.
func DetectDistro(p Platform) Distro {
	for _, marker := range distroMarkers {
		if p.Exists(marker.path) {
			return marker.distro
		}
	}

	return DistroUnknown
}

// installCommands maps a distro to its package installation command prefix.
//
//nolint:gochecknoglobals // Fixed lookup table.
var installCommands = map[Distro]string{
	DistroAlpine: "apk add",
	DistroArch:   "pacman -S",
	DistroFedora: "dnf install",
	DistroRHEL:   "dnf install",
	DistroSUSE:   "zypper install",
	DistroDebian: "apt-get install",
}

// toolPackages maps a tool to the distro package that ships it.
//
//nolint:gochecknoglobals // Fixed lookup table.
var toolPackages = map[string]map[Distro]string{
	ToolMksquashfs: {
		DistroAlpine: "squashfs-tools",
		DistroArch:   "squashfs-tools",
		DistroFedora: "squashfs-tools",
		DistroRHEL:   "squashfs-tools",
		DistroSUSE:   "squashfs",
		DistroDebian: "squashfs-tools",
	},
	ToolDpkgDeb: {
		DistroAlpine: "dpkg",
		DistroArch:   "dpkg",
		DistroFedora: "dpkg",
		DistroRHEL:   "dpkg",
		DistroSUSE:   "dpkg",
		DistroDebian: "dpkg",
	},
}

// Remediation returns a human hint naming what to install to get tool on distro.
func Remediation(tool string, distro Distro) string {
	if tool == ToolPyInstaller {
		return "pip install pyinstaller"
	}

	if tool == ToolAppImageTool {
		return "download appimagetool from https://github.com/AppImage/appimagetool/releases and put it on PATH"
	}

	packages, ok := toolPackages[tool]
	if !ok {
		return "install " + tool
	}

	command, ok := installCommands[distro]
	if !ok {
		return fmt.Sprintf("install the package providing %s (usually %s)", tool, packages[DistroDebian])
	}

	return command + " " + packages[distro]
}
