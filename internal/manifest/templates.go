package manifest

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Templates of the generated files. Control fields follow deb-control(5),
// desktop entries follow the freedesktop Desktop Entry format.
const (
	controlTemplate = `Package: {{ .Package.Name }}
Version: {{ .Package.Version }}
Section: {{ .Package.Section }}
Priority: {{ .Package.Priority }}
Architecture: {{ .Package.Architecture }}
{{- if .Package.Depends }}
Depends: {{ join .Package.Depends ", " }}
{{- end }}
Maintainer: {{ .Package.Maintainer }}
Installed-Size: {{ .InstalledSize }}
Description: {{ .Synopsis }}
{{- range .ExtendedDescription }}
 {{ . }}
{{- end }}
{{- if .App.Homepage }}
Homepage: {{ .App.Homepage }}
{{- end }}
`

	postinstTemplate = `#!/bin/sh
set -e

if [ ! -f /usr/share/icons/hicolor/256x256/apps/{{ .App.Icon }} ]; then
    ln -sf /usr/share/icons/hicolor/scalable/apps/applications-python.svg ` +
		`/usr/share/icons/hicolor/256x256/apps/{{ .App.Icon }} 2>/dev/null || true
fi

if command -v update-desktop-database >/dev/null 2>&1; then
    update-desktop-database /usr/share/applications || true
fi

if command -v gtk-update-icon-cache >/dev/null 2>&1; then
    gtk-update-icon-cache /usr/share/icons/hicolor/ 2>/dev/null || true
fi

echo "{{ .App.Name }} has been installed!"
echo "Run '{{ .App.Command }}' from terminal or find it in your applications menu."
exit 0
`

	prermTemplate = `#!/bin/sh
set -e
exit 0
`

	wrapperTemplate = `#!/bin/sh
exec {{ .App.Interpreter }} /usr/share/{{ .App.Command }}/{{ .App.Script }} "$@"
`

	desktopTemplate = `[Desktop Entry]
Name={{ .App.Name }}
Comment={{ .App.Summary }}
Exec={{ .Exec }}
Icon={{ .App.Command }}
Type=Application
Categories={{ join .App.Categories ";" }};
Terminal=false
StartupNotify=true
{{- if .App.MimeTypes }}
MimeType={{ join .App.MimeTypes ";" }};
{{- end }}
{{- range $key, $value := .Extra }}
{{ $key }}={{ $value }}
{{- end }}
`

	appdataTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<component type="desktop-application">
  <id>{{ .App.ID }}</id>
  <metadata_license>{{ .App.License }}</metadata_license>
  <project_license>{{ .App.License }}</project_license>
  <name>{{ .App.Name }}</name>
  <summary>{{ .App.Summary }}</summary>
  <launchable type="desktop-id">{{ .App.Command }}.desktop</launchable>
{{- if .App.Homepage }}
  <url type="homepage">{{ .App.Homepage }}</url>
{{- end }}
  <developer_name>{{ .App.Developer }}</developer_name>
{{- if .App.Contact }}
  <update_contact>{{ .App.Contact }}</update_contact>
{{- end }}
  <content_rating type="oars-1.1" />
  <releases>
    <release version="{{ .Package.Version }}"{{ if .App.ReleaseDate }} date="{{ .App.ReleaseDate }}"{{ end }} />
  </releases>
</component>
`

	copyrightTemplate = `Format: https://www.debian.org/doc/packaging-manuals/copyright-format/1.0/
Upstream-Name: {{ .App.Name }}
{{- if .App.Homepage }}
Source: {{ .App.Homepage }}
{{- end }}

Files: *
Copyright: {{ .Package.Copyright }}
License: {{ .App.License }}
`
)

//nolint:gochecknoglobals // Parsed once, read-only afterwards.
var templates = template.Must(
	template.New("manifest").
		Funcs(template.FuncMap{"join": strings.Join}).
		Parse(`{{ define "control" }}` + controlTemplate + `{{ end }}` +
			`{{ define "postinst" }}` + postinstTemplate + `{{ end }}` +
			`{{ define "prerm" }}` + prermTemplate + `{{ end }}` +
			`{{ define "wrapper" }}` + wrapperTemplate + `{{ end }}` +
			`{{ define "desktop" }}` + desktopTemplate + `{{ end }}` +
			`{{ define "appdata" }}` + appdataTemplate + `{{ end }}` +
			`{{ define "copyright" }}` + copyrightTemplate + `{{ end }}`),
)

// render executes a named template.
func render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}

	return buf.Bytes(), nil
}
