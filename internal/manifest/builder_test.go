package manifest

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/domain/build"
)

func sourceFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()

	fs := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}

	return fs
}

// TestBuild_PartitionsAndModes checks roles, paths and permission modes of staged entries.
func TestBuild_PartitionsAndModes(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	src := sourceFS(t, map[string]string{
		"pygenius_desktop.py": "print('hi')\n",
		"pygenius":            "#!/bin/sh\n",
	})

	m, err := NewBuilder(src, cfg.Application, cfg.Package).Build()
	require.NoError(t, err)

	wantModes := map[string]uint32{
		"control":  0o644,
		"postinst": 0o755,
		"prerm":    0o755,
		"md5sums":  0o644,
	}

	control := m.Control()
	require.Len(t, control, len(wantModes))

	for _, entry := range control {
		require.Equal(t, RoleControl, entry.Role)
		require.EqualValues(t, wantModes[entry.Path], entry.Mode, entry.Path)
	}

	wantData := map[string]uint32{
		"usr/share/pygenius/pygenius_desktop.py":             0o644,
		"usr/share/pygenius/pygenius":                        0o755,
		"usr/bin/pygenius":                                   0o755,
		"usr/share/applications/pygenius.desktop":            0o644,
		"usr/share/metainfo/ai.pygenius.desktop.appdata.xml": 0o644,
		"usr/share/doc/pygenius/copyright":                   0o644,
	}

	data := m.Data()
	require.Len(t, data, len(wantData))

	for _, entry := range data {
		require.Equal(t, RoleData, entry.Role)
		require.EqualValues(t, wantData[entry.Path], entry.Mode, entry.Path)
	}

	require.Equal(t, "pygenius-ai_1.0.0_all.deb", m.FileName())
}

// TestBuild_ControlContents verifies the rendered control file and md5sums.
func TestBuild_ControlContents(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Package.Description = "Short line\nFirst extended\n\nAfter blank"

	src := sourceFS(t, map[string]string{
		"pygenius_desktop.py": "x",
		"pygenius":            "y",
		"pygenius.png":        "png",
	})

	m, err := NewBuilder(src, cfg.Application, cfg.Package).Build()
	require.NoError(t, err)

	control, ok := m.Lookup(RoleControl, "control")
	require.True(t, ok)

	text := string(control.Content)
	require.Contains(t, text, "Package: pygenius-ai\n")
	require.Contains(t, text, "Depends: python3 (>= 3.8), python3-requests, python3-tk\n")
	require.Contains(t, text, "Description: Short line\n First extended\n .\n After blank\n")
	require.Regexp(t, `(?m)^Installed-Size: [1-9][0-9]*$`, text)

	sums, ok := m.Lookup(RoleControl, "md5sums")
	require.True(t, ok)
	require.Contains(t, string(sums.Content), "  usr/share/icons/hicolor/256x256/apps/pygenius.png\n")

	wrapper, ok := m.Lookup(RoleData, "usr/bin/pygenius")
	require.True(t, ok)
	require.Contains(t, string(wrapper.Content), "exec python3 /usr/share/pygenius/pygenius_desktop.py")
}

// TestBuild_MissingSource fails with ErrMissingSourceFile naming the file.
func TestBuild_MissingSource(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	src := sourceFS(t, map[string]string{"pygenius_desktop.py": "x"})

	m, err := NewBuilder(src, cfg.Application, cfg.Package).Build()
	require.ErrorIs(t, err, build.ErrMissingSourceFile)
	require.ErrorContains(t, err, "pygenius")
	require.Nil(t, m)
}

// TestBuild_DuplicatePath rejects a launcher that collides with the script.
func TestBuild_DuplicatePath(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Application.Launcher = cfg.Application.Script

	src := sourceFS(t, map[string]string{"pygenius_desktop.py": "x"})

	_, err := NewBuilder(src, cfg.Application, cfg.Package).Build()
	require.ErrorIs(t, err, ErrDuplicateEntry)
}

// TestManifest_Immutable ensures callers cannot change staged content through accessors.
func TestManifest_Immutable(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	src := sourceFS(t, map[string]string{"pygenius_desktop.py": "abc", "pygenius": "l"})

	m, err := NewBuilder(src, cfg.Application, cfg.Package).Build()
	require.NoError(t, err)

	entries := m.Entries()
	entries[0].Content[0] = 'Z'
	entries[0].Path = "mutated"

	again := m.Entries()
	require.NotEqual(t, "mutated", again[0].Path)
	require.NotEqual(t, byte('Z'), again[0].Content[0])
}

// TestRenderDesktopEntry renders extra keys after the standard ones.
func TestRenderDesktopEntry(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	out, err := RenderDesktopEntry(cfg.Application, cfg.Package, "AppRun", map[string]string{
		"X-AppImage-Version": "1.0.0",
	})
	require.NoError(t, err)
	require.Contains(t, string(out), "Exec=AppRun\n")
	require.Contains(t, string(out), "Categories=Development;IDE;Education;\n")
	require.Contains(t, string(out), "X-AppImage-Version=1.0.0\n")
}
