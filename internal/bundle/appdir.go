package bundle

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"text/template"

	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/fsutil"
	"github.com/oshokin/pkg-assembler/internal/manifest"
)

const (
	// AppRunName is the entry point the runtime executes after mounting the image.
	AppRunName = "AppRun"

	iconDir = "usr/share/icons/hicolor/256x256/apps"
	dirMode = 0o755
)

var appRunTemplate = template.Must(template.New("AppRun").Parse(`#!/bin/sh
HERE="$(dirname "$(readlink -f "${0}")")"
export PYTHONPATH="${HERE}/usr/share/{{ .Command }}${PYTHONPATH:+:${PYTHONPATH}}"
exec {{ .Interpreter }} "${HERE}/usr/share/{{ .Command }}/{{ .Script }}" "$@"
`))

// FileName returns the bundle file name for arch.
func FileName(app config.Application, arch string) string {
	return fmt.Sprintf("%s-%s.AppImage", app.BundleName, arch)
}

// StageAppDir lays out the application directory under dir: every data entry of m,
// the AppRun entry point, a root desktop entry and a root icon.
// A missing icon is replaced by an empty placeholder.
func StageAppDir(m *manifest.PackageManifest, app config.Application, pkg config.Package, arch, dir string) error {
	for _, entry := range m.Data() {
		if err := writeFile(dir, entry.Path, entry.Content, entry.Mode); err != nil {
			return err
		}
	}

	var appRun bytes.Buffer
	if err := appRunTemplate.Execute(&appRun, app); err != nil {
		return fmt.Errorf("render %s: %w", AppRunName, err)
	}

	if err := writeFile(dir, AppRunName, appRun.Bytes(), manifest.ModeExecutable); err != nil {
		return err
	}

	desktop, err := manifest.RenderDesktopEntry(app, pkg, AppRunName, map[string]string{
		"X-AppImage-Name":    app.Name,
		"X-AppImage-Version": pkg.Version,
		"X-AppImage-Arch":    arch,
	})
	if err != nil {
		return err
	}

	if err = writeFile(dir, app.Command+".desktop", desktop, manifest.ModeRegular); err != nil {
		return err
	}

	var icon []byte

	if app.Icon != "" {
		if entry, ok := m.Lookup(manifest.RoleData, path.Join(iconDir, app.Icon)); ok {
			icon = entry.Content
		}
	}

	iconName := app.Icon
	if iconName == "" {
		iconName = app.Command + ".png"
	}

	return writeFile(dir, iconName, icon, manifest.ModeRegular)
}

func writeFile(root, name string, content []byte, mode os.FileMode) error {
	target := filepath.Join(root, filepath.FromSlash(name))

	if err := fsutil.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return fmt.Errorf("create directory for %s: %w", name, err)
	}

	if err := os.WriteFile(target, content, mode); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	// WriteFile honours the umask; staged modes must be exact.
	if err := os.Chmod(target, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}

	return nil
}
