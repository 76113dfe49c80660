package manifest

import (
	"crypto/md5" //nolint:gosec // dpkg md5sums format mandates MD5.
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/domain/build"
)

// Builder turns the application sources and package metadata into a PackageManifest.
type Builder struct {
	src billy.Filesystem
	app config.Application
	pkg config.Package
}

// templateData is what the file templates see.
type templateData struct {
	App                 config.Application
	Package             config.Package
	Synopsis            string
	ExtendedDescription []string
	InstalledSize       int64
	Exec                string
	Extra               map[string]string
}

// NewBuilder creates a builder reading application files from src.
func NewBuilder(src billy.Filesystem, app config.Application, pkg config.Package) *Builder {
	return &Builder{
		src: src,
		app: app,
		pkg: pkg,
	}
}

// Build stages every control and data entry.
func (b *Builder) Build() (*PackageManifest, error) {
	script, err := b.readRequired(b.app.Script)
	if err != nil {
		return nil, err
	}

	launcher, err := b.readRequired(b.app.Launcher)
	if err != nil {
		return nil, err
	}

	icon, err := b.readOptional(b.app.Icon)
	if err != nil {
		return nil, err
	}

	data := b.templateData("")

	staged := newStaging()

	shareDir := path.Join("usr/share", b.app.Command)
	if err = staged.add(RoleData, path.Join(shareDir, b.app.Script), script, ModeRegular); err != nil {
		return nil, err
	}

	if err = staged.add(RoleData, path.Join(shareDir, b.app.Launcher), launcher, ModeExecutable); err != nil {
		return nil, err
	}

	generated := []struct {
		path     string
		template string
		mode     os.FileMode
		exec     string
	}{
		{path.Join("usr/bin", b.app.Command), "wrapper", ModeExecutable, ""},
		{path.Join("usr/share/applications", b.app.Command+".desktop"), "desktop", ModeRegular, b.app.Command},
		{path.Join("usr/share/metainfo", b.app.ID+".appdata.xml"), "appdata", ModeRegular, ""},
		{path.Join("usr/share/doc", b.app.Command, "copyright"), "copyright", ModeRegular, ""},
	}

	for _, g := range generated {
		data.Exec = g.exec

		content, renderErr := render(g.template, data)
		if renderErr != nil {
			return nil, renderErr
		}

		if err = staged.add(RoleData, g.path, content, g.mode); err != nil {
			return nil, err
		}
	}

	if icon != nil {
		iconPath := path.Join("usr/share/icons/hicolor/256x256/apps", b.app.Icon)
		if err = staged.add(RoleData, iconPath, icon, ModeRegular); err != nil {
			return nil, err
		}
	}

	if err = b.stageControl(staged, data); err != nil {
		return nil, err
	}

	return &PackageManifest{
		name:         b.pkg.Name,
		version:      b.pkg.Version,
		architecture: b.pkg.Architecture,
		depends:      slices.Clone(b.pkg.Depends),
		maintainer:   b.pkg.Maintainer,
		description:  b.pkg.Description,
		homepage:     b.app.Homepage,
		entries:      append(staged.control, staged.data...),
	}, nil
}

// stageControl renders the control set; it needs the data set to be complete.
func (b *Builder) stageControl(staged *staging, data templateData) error {
	data.InstalledSize = installedSize(staged.data)

	scripts := []struct {
		name string
		mode os.FileMode
	}{
		{"control", ModeRegular},
		{"postinst", ModeExecutable},
		{"prerm", ModeExecutable},
	}

	for _, s := range scripts {
		content, err := render(s.name, data)
		if err != nil {
			return err
		}

		if err = staged.add(RoleControl, s.name, content, s.mode); err != nil {
			return err
		}
	}

	return staged.add(RoleControl, "md5sums", md5sums(staged.data), ModeRegular)
}

func (b *Builder) templateData(exec string) templateData {
	synopsis, extended := splitDescription(b.pkg.Description)

	return templateData{
		App:                 b.app,
		Package:             b.pkg,
		Synopsis:            synopsis,
		ExtendedDescription: extended,
		Exec:                exec,
	}
}

// readRequired reads a mandatory application file.
func (b *Builder) readRequired(name string) ([]byte, error) {
	content, err := util.ReadFile(b.src, name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, build.ErrMissingSourceFile)
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return content, nil
}

// readOptional returns nil content for a missing file.
func (b *Builder) readOptional(name string) ([]byte, error) {
	if name == "" {
		return nil, nil
	}

	content, err := util.ReadFile(b.src, name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return content, nil
}

// RenderDesktopEntry renders a desktop entry launching exec, with extra keys appended.
func RenderDesktopEntry(app config.Application, pkg config.Package, exec string, extra map[string]string) ([]byte, error) {
	b := NewBuilder(nil, app, pkg)
	data := b.templateData(exec)
	data.Extra = extra

	return render("desktop", data)
}

// staging accumulates entries and enforces path uniqueness per role.
type staging struct {
	control []FileEntry
	data    []FileEntry
	seen    map[Role]map[string]struct{}
}

func newStaging() *staging {
	return &staging{
		seen: map[Role]map[string]struct{}{
			RoleControl: {},
			RoleData:    {},
		},
	}
}

func (s *staging) add(role Role, entryPath string, content []byte, mode os.FileMode) error {
	if _, ok := s.seen[role][entryPath]; ok {
		return fmt.Errorf("%s %s: %w", role, entryPath, ErrDuplicateEntry)
	}

	s.seen[role][entryPath] = struct{}{}

	entry := FileEntry{
		Path:    entryPath,
		Content: content,
		Mode:    mode,
		Role:    role,
	}

	if role == RoleControl {
		s.control = append(s.control, entry)
	} else {
		s.data = append(s.data, entry)
	}

	return nil
}

// splitDescription separates the synopsis from the extended description.
// Blank extended lines become "." as deb-control(5) requires.
func splitDescription(description string) (string, []string) {
	lines := strings.Split(strings.TrimSpace(description), "\n")

	extended := make([]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			line = "."
		}

		extended = append(extended, line)
	}

	return strings.TrimSpace(lines[0]), extended
}

// installedSize returns the payload size in KiB, rounded up.
func installedSize(entries []FileEntry) int64 {
	const kib = 1024

	var total int64
	for _, entry := range entries {
		total += int64(len(entry.Content))
	}

	return (total + kib - 1) / kib
}

// md5sums renders the dpkg md5sums file for the payload.
func md5sums(entries []FileEntry) []byte {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b FileEntry) int { return strings.Compare(a.Path, b.Path) })

	var sb strings.Builder
	for _, entry := range sorted {
		sum := md5.Sum(entry.Content) //nolint:gosec // See import comment.
		sb.WriteString(hex.EncodeToString(sum[:]))
		sb.WriteString("  ")
		sb.WriteString(entry.Path)
		sb.WriteByte('\n')
	}

	return []byte(sb.String())
}
