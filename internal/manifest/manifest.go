package manifest

import (
	"errors"
	"os"
	"slices"
)

// Role tells which inner archive an entry belongs to.
type Role int

const (
	// RoleControl entries hold package metadata and lifecycle hooks.
	RoleControl Role = iota
	// RoleData entries are installed on the target system.
	RoleData
)

// String implements fmt.Stringer.
func (r Role) String() string {
	if r == RoleControl {
		return "control"
	}

	return "data"
}

// Permission modes assigned to staged entries.
const (
	ModeExecutable os.FileMode = 0o755
	ModeRegular    os.FileMode = 0o644
)

// ErrDuplicateEntry is returned when two entries of one role share a path.
var ErrDuplicateEntry = errors.New("duplicate manifest entry")

// FileEntry is a single staged file.
type FileEntry struct {
	// Path is relative and scoped to the role: "postinst" or "usr/bin/app".
	Path    string
	Content []byte
	Mode    os.FileMode
	Role    Role
}

// PackageManifest is the staged file set plus package metadata.
// It is created by Builder.Build and never modified afterwards.
type PackageManifest struct {
	name         string
	version      string
	architecture string
	depends      []string
	maintainer   string
	description  string
	homepage     string
	entries      []FileEntry
}

// Name returns the package name.
func (m *PackageManifest) Name() string { return m.name }

// Version returns the package version.
func (m *PackageManifest) Version() string { return m.version }

// Architecture returns the Debian architecture tag.
func (m *PackageManifest) Architecture() string { return m.architecture }

// Depends returns the declared runtime dependencies.
func (m *PackageManifest) Depends() []string { return slices.Clone(m.depends) }

// Maintainer returns the maintainer line.
func (m *PackageManifest) Maintainer() string { return m.maintainer }

// Description returns the package description.
func (m *PackageManifest) Description() string { return m.description }

// Homepage returns the project homepage.
func (m *PackageManifest) Homepage() string { return m.homepage }

// Entries returns a copy of every entry in staging order.
func (m *PackageManifest) Entries() []FileEntry {
	return cloneEntries(m.entries, func(FileEntry) bool { return true })
}

// Control returns the control entries in staging order.
func (m *PackageManifest) Control() []FileEntry {
	return cloneEntries(m.entries, func(e FileEntry) bool { return e.Role == RoleControl })
}

// Data returns the payload entries in staging order.
func (m *PackageManifest) Data() []FileEntry {
	return cloneEntries(m.entries, func(e FileEntry) bool { return e.Role == RoleData })
}

// Lookup finds an entry by role and path.
func (m *PackageManifest) Lookup(role Role, path string) (FileEntry, bool) {
	for _, entry := range m.entries {
		if entry.Role == role && entry.Path == path {
			entry.Content = slices.Clone(entry.Content)

			return entry, true
		}
	}

	return FileEntry{}, false
}

// FileName returns the conventional <name>_<version>_<arch>.deb file name.
func (m *PackageManifest) FileName() string {
	return m.name + "_" + m.version + "_" + m.architecture + ".deb"
}

func cloneEntries(entries []FileEntry, keep func(FileEntry) bool) []FileEntry {
	result := make([]FileEntry, 0, len(entries))

	for _, entry := range entries {
		if !keep(entry) {
			continue
		}

		entry.Content = slices.Clone(entry.Content)
		result = append(result, entry)
	}

	return result
}
