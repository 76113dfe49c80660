package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/pkg-assembler/internal/domain/build"
	"github.com/oshokin/pkg-assembler/internal/probe"
)

// Config is the build configuration of a single assembler invocation.
type Config struct {
	// OutputDir receives published artifacts grouped by target family.
	OutputDir string `yaml:"output_dir"`
	// WorkDir holds per-target temporary directories. It should live on the
	// same filesystem as OutputDir so that publishing is a single rename.
	WorkDir string `yaml:"work_dir"`
	// CacheDir keeps downloaded runtime stubs and tools across invocations.
	CacheDir string `yaml:"cache_dir"`
	// SourceDir contains the application files to package.
	SourceDir string `yaml:"source_dir"`
	// Targets restricts the build to the listed target IDs. Empty means all.
	Targets []string `yaml:"targets,omitempty"`
	// ForceCrossBuild builds targets that are not native to the host.
	ForceCrossBuild bool `yaml:"force_cross_build"`
	// ForceTargets lists target IDs built even when they are not native to the host.
	ForceTargets []string `yaml:"force_targets,omitempty"`
	// DistroOverride replaces host distribution detection when set.
	DistroOverride string `yaml:"distro_override,omitempty"`
	// RuntimeMirrors are tried in order to download the bundle runtime stub.
	// The {arch} placeholder is replaced with the bundle architecture.
	RuntimeMirrors []string `yaml:"runtime_mirrors"`
	// RuntimeChecksum is an optional hex SHA-256 of the runtime stub.
	RuntimeChecksum string `yaml:"runtime_sha256,omitempty"`
	// ToolMirrors are tried in order to download appimagetool into the cache
	// when it is not on PATH. Empty disables the download.
	ToolMirrors []string `yaml:"appimagetool_mirrors,omitempty"`
	// SquashfsCompression is passed to mksquashfs -comp.
	SquashfsCompression string `yaml:"squashfs_compression"`
	// DownloadTimeout bounds every single mirror attempt.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// ToolTimeout bounds every external tool invocation.
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	// Application describes the packaged desktop application.
	Application Application `yaml:"application"`
	// Package holds Debian package metadata.
	Package Package `yaml:"package"`
}

// Application describes the files and desktop integration of the packaged app.
type Application struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	BundleName  string   `yaml:"bundle_name"`
	Command     string   `yaml:"command"`
	Script      string   `yaml:"script"`
	Launcher    string   `yaml:"launcher"`
	Icon        string   `yaml:"icon"`
	Interpreter string   `yaml:"interpreter"`
	Summary     string   `yaml:"summary"`
	Categories  []string `yaml:"categories"`
	MimeTypes   []string `yaml:"mime_types"`
	License     string   `yaml:"license"`
	Developer   string   `yaml:"developer"`
	Contact     string   `yaml:"contact"`
	Homepage    string   `yaml:"homepage"`
	ReleaseDate string   `yaml:"release_date"`
}

// Package holds the Debian control metadata.
type Package struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Architecture string   `yaml:"architecture"`
	Section      string   `yaml:"section"`
	Priority     string   `yaml:"priority"`
	Depends      []string `yaml:"depends"`
	Maintainer   string   `yaml:"maintainer"`
	Description  string   `yaml:"description"`
	Copyright    string   `yaml:"copyright"`
}

const (
	// DefaultConfigFilename is the configuration file looked up when --config is not given.
	DefaultConfigFilename = "pkg-assembler.yaml"

	// DefaultOutputDir is where artifacts are published.
	DefaultOutputDir = "release"

	// DefaultWorkDir is the parent of per-target temporary directories.
	DefaultWorkDir = "build"

	// DefaultDownloadTimeout bounds a single mirror attempt.
	DefaultDownloadTimeout = 2 * time.Minute

	// DefaultToolTimeout bounds a single external tool run.
	DefaultToolTimeout = 15 * time.Minute

	// DefaultSquashfsCompression is understood by every published runtime.
	DefaultSquashfsCompression = "gzip"

	// DefaultFilePermissions is used when saving the configuration.
	DefaultFilePermissions = 0o644

	// ArchPlaceholder is substituted in mirror URLs.
	ArchPlaceholder = "{arch}"

	cacheSubdir = "pkg-assembler"
)

// Environment variables honoured by ApplyEnvironment. EnvForceWindows un-skips
// only the Windows target.
const (
	EnvForceWindows   = "BUILD_WINDOWS"
	EnvDistroOverride = "PKG_ASSEMBLER_DISTRO"
)

var (
	errConfigIsNotSet      = errors.New("configuration is not set")
	errOutputDirRequired   = errors.New("output directory must be provided")
	errPackageNameRequired = errors.New("package name and version must be provided")
	errAppFilesRequired    = errors.New("application script and launcher must be provided")
	errNoRuntimeMirrors    = errors.New("at least one runtime mirror must be provided")
	errBadChecksum         = errors.New("runtime checksum must be a hex SHA-256 digest")
	errNestedAppFile       = errors.New("application script and launcher must be plain file names")
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		OutputDir: DefaultOutputDir,
		WorkDir:   DefaultWorkDir,
		CacheDir:  filepath.Join(xdg.CacheHome, cacheSubdir),
		SourceDir: ".",
		RuntimeMirrors: []string{
			"https://github.com/AppImage/type2-runtime/releases/download/continuous/runtime-" + ArchPlaceholder,
			"https://github.com/AppImage/AppImageKit/releases/download/continuous/runtime-" + ArchPlaceholder,
		},
		ToolMirrors: []string{
			"https://github.com/AppImage/appimagetool/releases/download/continuous/appimagetool-" +
				ArchPlaceholder + ".AppImage",
			"https://github.com/AppImage/AppImageKit/releases/download/continuous/appimagetool-" +
				ArchPlaceholder + ".AppImage",
		},
		SquashfsCompression: DefaultSquashfsCompression,
		DownloadTimeout:     DefaultDownloadTimeout,
		ToolTimeout:         DefaultToolTimeout,
		Application: Application{
			ID:          "ai.pygenius.desktop",
			Name:        "PyGenius AI",
			BundleName:  "PyGeniusAI",
			Command:     "pygenius",
			Script:      "pygenius_desktop.py",
			Launcher:    "pygenius",
			Icon:        "pygenius.png",
			Interpreter: "python3",
			Summary:     "Python coding assistant with AI-powered features",
			Categories:  []string{"Development", "IDE", "Education"},
			MimeTypes:   []string{"text/x-python"},
			License:     "MIT",
			Developer:   "Kicicema Web",
			Contact:     "kicicema.web@gmail.com",
			Homepage:    "https://github.com/kicicema-web/pygenius",
			ReleaseDate: "2024-01-28",
		},
		Package: Package{
			Name:         "pygenius-ai",
			Version:      "1.0.0",
			Architecture: "all",
			Section:      "devel",
			Priority:     "optional",
			Depends:      []string{"python3 (>= 3.8)", "python3-requests", "python3-tk"},
			Maintainer:   "Kicicema Web <kicicema.web@gmail.com>",
			Description: "PyGenius AI - Python coding assistant\n" +
				"PyGenius AI is a desktop application for Python coding with AI-powered features.",
			Copyright: "2024 Kicicema Web",
		},
	}
}

// Load reads configuration from path on top of Default and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the validated defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()

		return cfg, Validate(cfg)
	}

	return cfg, err
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnvironment folds the supported environment overrides into cfg.
func ApplyEnvironment(cfg *Config, getenv func(string) string) {
	windows := string(build.TargetWindowsExe)
	if getenv(EnvForceWindows) != "" && !slices.Contains(cfg.ForceTargets, windows) {
		cfg.ForceTargets = append(cfg.ForceTargets, windows)
	}

	if distro := strings.TrimSpace(getenv(EnvDistroOverride)); distro != "" {
		cfg.DistroOverride = distro
	}
}

// Validate fills zero-valued tunables with defaults and checks required fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.OutputDir == "" {
		return errOutputDirRequired
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultWorkDir
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(xdg.CacheHome, cacheSubdir)
	}

	if cfg.SourceDir == "" {
		cfg.SourceDir = "."
	}

	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}

	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}

	if cfg.SquashfsCompression == "" {
		cfg.SquashfsCompression = DefaultSquashfsCompression
	}

	if cfg.Package.Name == "" || cfg.Package.Version == "" {
		return errPackageNameRequired
	}

	if cfg.Package.Architecture == "" {
		cfg.Package.Architecture = "all"
	}

	if cfg.Application.Script == "" || cfg.Application.Launcher == "" {
		return errAppFilesRequired
	}

	if strings.ContainsAny(cfg.Application.Script+cfg.Application.Launcher, `/\`) {
		return fmt.Errorf("application files: %w", errNestedAppFile)
	}

	if len(cfg.RuntimeMirrors) == 0 {
		return errNoRuntimeMirrors
	}

	for _, mirrors := range [][]string{cfg.RuntimeMirrors, cfg.ToolMirrors} {
		for _, mirror := range mirrors {
			if _, err := url.ParseRequestURI(ExpandMirror(mirror, "x86_64")); err != nil {
				return fmt.Errorf("invalid mirror %q: %w", mirror, err)
			}
		}
	}

	if cfg.DistroOverride != "" {
		if _, err := probe.ParseDistro(cfg.DistroOverride); err != nil {
			return fmt.Errorf("distro override: %w", err)
		}
	}

	if cfg.RuntimeChecksum != "" && !isHexDigest(cfg.RuntimeChecksum) {
		return errBadChecksum
	}

	return nil
}

// ExpandMirror substitutes the architecture placeholder of a mirror URL.
func ExpandMirror(mirror, arch string) string {
	return strings.ReplaceAll(mirror, ArchPlaceholder, arch)
}

// ExpandMirrors applies ExpandMirror to every entry.
func ExpandMirrors(mirrors []string, arch string) []string {
	result := make([]string, 0, len(mirrors))
	for _, mirror := range mirrors {
		result = append(result, ExpandMirror(mirror, arch))
	}

	return result
}

func isHexDigest(s string) bool {
	const sha256HexLength = 64

	if len(s) != sha256HexLength {
		return false
	}

	for _, r := range strings.ToLower(s) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}

	return true
}
