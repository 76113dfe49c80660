package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/pkg-assembler/internal/archive/deb"
	"github.com/oshokin/pkg-assembler/internal/bundle"
	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/domain/build"
	"github.com/oshokin/pkg-assembler/internal/fetch"
	"github.com/oshokin/pkg-assembler/internal/fsutil"
	"github.com/oshokin/pkg-assembler/internal/logger"
	"github.com/oshokin/pkg-assembler/internal/manifest"
	"github.com/oshokin/pkg-assembler/internal/probe"
	"github.com/oshokin/pkg-assembler/internal/toolexec"
)

const (
	stageDirMode os.FileMode = 0o755

	windowsIcon = "%s.ico"

	readmeTemplate = `%[1]s - Windows Edition
==============================

To run %[1]s:
1. Double-click on %[2]s

Requirements:
- Windows 10 or later

Support: %[3]s
`
)

var errNoArtifact = errors.New("tool exited successfully but produced no artifact")

// DpkgDebStrategy stages the package tree and runs dpkg-deb.
type DpkgDebStrategy struct{}

// Name implements Strategy.
func (DpkgDebStrategy) Name() string {
	return probe.ToolDpkgDeb
}

// Build implements Strategy.
func (s DpkgDebStrategy) Build(ctx context.Context, job *Job) (string, error) {
	tool := job.Availability.Path(probe.ToolDpkgDeb)
	if tool == "" {
		return "", fmt.Errorf("%s not found (%s): %w",
			probe.ToolDpkgDeb, probe.Remediation(probe.ToolDpkgDeb, job.Availability.Distro), build.ErrMissingDependency)
	}

	root := filepath.Join(job.WorkDir, "root")

	for _, entry := range job.Manifest.Entries() {
		name := entry.Path
		if entry.Role == manifest.RoleControl {
			name = filepath.Join("DEBIAN", name)
		}

		if err := stageFile(root, name, entry.Content, entry.Mode); err != nil {
			return "", err
		}
	}

	ctx, cancel := toolContext(ctx, job.Config)
	defer cancel()

	cmd := toolexec.Command{
		Path: tool,
		Args: []string{"--build", "--root-owner-group", root, job.OutputPath()},
		Dir:  job.WorkDir,
	}

	logger.InfoKV(ctx, "Running dpkg-deb", "command", cmd.String())

	if _, err := job.Runner.Run(ctx, cmd); err != nil {
		return "", err
	}

	if _, err := os.Stat(job.OutputPath()); err != nil {
		return "", fmt.Errorf("%s: %w", probe.ToolDpkgDeb, errNoArtifact)
	}

	return s.Name(), nil
}

// BuiltinDebStrategy writes the package with the in-process archive writer.
type BuiltinDebStrategy struct{}

// Name implements Strategy.
func (BuiltinDebStrategy) Name() string {
	return "builtin"
}

// Build implements Strategy.
func (s BuiltinDebStrategy) Build(_ context.Context, job *Job) (string, error) {
	if err := deb.WriteFile(job.Manifest, job.OutputPath()); err != nil {
		return "", err
	}

	return s.Name(), nil
}

// BundleStrategy stages an application directory and hands it to the bundle assembler.
type BundleStrategy struct{}

// Name implements Strategy.
func (BundleStrategy) Name() string {
	return "bundle"
}

// Build implements Strategy.
func (BundleStrategy) Build(ctx context.Context, job *Job) (string, error) {
	cfg := job.Config
	arch := job.BundleArch()
	appDir := filepath.Join(job.WorkDir, "AppDir")

	if err := bundle.StageAppDir(job.Manifest, cfg.Application, cfg.Package, arch, appDir); err != nil {
		return "", fmt.Errorf("stage application directory: %w", err)
	}

	checksum, err := fetch.ParseChecksum(cfg.RuntimeChecksum)
	if err != nil {
		return "", err
	}

	assembler := bundle.NewAssembler(
		&bundle.ToolStrategy{
			Runner:       job.Runner,
			Fetcher:      job.Fetcher,
			Availability: job.Availability,
			Mirrors:      cfg.ToolMirrors,
			Timeout:      cfg.ToolTimeout,
		},
		&bundle.ManualStrategy{
			Runner:       job.Runner,
			Fetcher:      job.Fetcher,
			Availability: job.Availability,
			Mirrors:      cfg.RuntimeMirrors,
			Checksum:     checksum,
			Compression:  cfg.SquashfsCompression,
			Timeout:      cfg.ToolTimeout,
		},
	)

	return assembler.Build(ctx, bundle.Input{
		AppDir:     appDir,
		WorkDir:    job.WorkDir,
		OutputPath: job.OutputPath(),
		Arch:       arch,
	})
}

// PyInstallerStrategy freezes the application script into a single executable.
type PyInstallerStrategy struct{}

// Name implements Strategy.
func (PyInstallerStrategy) Name() string {
	return probe.ToolPyInstaller
}

// Build implements Strategy.
func (s PyInstallerStrategy) Build(ctx context.Context, job *Job) (string, error) {
	tool := job.Availability.Path(probe.ToolPyInstaller)
	if tool == "" {
		return "", fmt.Errorf("%s not found (%s): %w",
			probe.ToolPyInstaller, probe.Remediation(probe.ToolPyInstaller, job.Availability.Distro), build.ErrMissingDependency)
	}

	cfg := job.Config
	app := cfg.Application

	source, err := filepath.Abs(cfg.SourceDir)
	if err != nil {
		return "", err
	}

	script := filepath.Join(source, app.Script)
	if _, err = os.Stat(script); err != nil {
		return "", fmt.Errorf("%s: %w", app.Script, build.ErrMissingSourceFile)
	}

	distDir := filepath.Join(job.WorkDir, "dist")
	args := []string{
		"--onefile",
		"--windowed",
		"--name", app.BundleName,
		"--clean",
		"--noconfirm",
		"--distpath", distDir,
		"--workpath", filepath.Join(job.WorkDir, "pyinstaller"),
		"--specpath", job.WorkDir,
	}

	if icon := filepath.Join(source, fmt.Sprintf(windowsIcon, app.Command)); fileExists(icon) {
		args = append(args, "--icon", icon)
	}

	args = append(args, script)

	ctx, cancel := toolContext(ctx, cfg)
	defer cancel()

	cmd := toolexec.Command{Path: tool, Args: args, Dir: source}

	logger.InfoKV(ctx, "Running PyInstaller", "command", cmd.String())

	if _, err = job.Runner.Run(ctx, cmd); err != nil {
		return "", err
	}

	// PyInstaller only appends .exe when it runs on Windows.
	for _, name := range []string{app.BundleName + ".exe", app.BundleName} {
		produced := filepath.Join(distDir, name)
		if !fileExists(produced) {
			continue
		}

		if err = os.Rename(produced, job.OutputPath()); err != nil {
			return "", fmt.Errorf("collect executable: %w", err)
		}

		return s.Name(), nil
	}

	return "", fmt.Errorf("%s: %w", probe.ToolPyInstaller, errNoArtifact)
}

func windowsTarget() *Target {
	return &Target{
		ID:        build.TargetWindowsExe,
		Family:    FamilyWindows,
		Platforms: []string{"windows"},
		ArtifactName: func(job *Job) string {
			return job.Config.Application.BundleName + ".exe"
		},
		Companions: func(cfg *config.Config) map[string][]byte {
			app := cfg.Application

			return map[string][]byte{
				"README.txt": fmt.Appendf(nil, readmeTemplate, app.Name, app.BundleName+".exe", app.Homepage),
			}
		},
		Strategies: []Strategy{PyInstallerStrategy{}},
	}
}

func debTarget() *Target {
	return &Target{
		ID:            build.TargetLinuxDeb,
		Family:        FamilyLinux,
		Platforms:     []string{"linux"},
		NeedsManifest: true,
		ArtifactName: func(job *Job) string {
			return job.Manifest.FileName()
		},
		Strategies: []Strategy{DpkgDebStrategy{}, BuiltinDebStrategy{}},
	}
}

func appImageTarget() *Target {
	return &Target{
		ID:            build.TargetLinuxAppImage,
		Family:        FamilyLinux,
		Platforms:     []string{"linux"},
		NeedsManifest: true,
		ArtifactName: func(job *Job) string {
			return bundle.FileName(job.Config.Application, job.BundleArch())
		},
		Strategies: []Strategy{BundleStrategy{}},
	}
}

func stageFile(root, name string, content []byte, mode os.FileMode) error {
	target := filepath.Join(root, filepath.FromSlash(name))

	if err := fsutil.MkdirAll(filepath.Dir(target), stageDirMode); err != nil {
		return fmt.Errorf("create directory for %s: %w", name, err)
	}

	if err := os.WriteFile(target, content, mode); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}

	return os.Chmod(target, mode)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

func toolContext(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.ToolTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, cfg.ToolTimeout)
}
