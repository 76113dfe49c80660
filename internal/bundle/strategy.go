package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/domain/build"
	"github.com/oshokin/pkg-assembler/internal/fetch"
	"github.com/oshokin/pkg-assembler/internal/logger"
	"github.com/oshokin/pkg-assembler/internal/probe"
	"github.com/oshokin/pkg-assembler/internal/toolexec"
)

// Strategy names reported in build results.
const (
	StrategyTool   = "appimagetool"
	StrategyManual = "manual"
)

const imageName = "image.squashfs"

var errNoOutput = errors.New("tool exited successfully but produced no output")

// Input is what a strategy works on.
type Input struct {
	// AppDir is the staged application directory.
	AppDir string
	// WorkDir receives intermediate files.
	WorkDir string
	// OutputPath is where the finished bundle must appear.
	OutputPath string
	// Arch is the uname-style machine name, "x86_64" for example.
	Arch string
}

// Strategy produces a bundle from a staged directory.
type Strategy interface {
	Name() string
	Assemble(ctx context.Context, in Input) error
}

// RuntimeName returns the cache file name of the runtime stub for arch.
func RuntimeName(arch string) string {
	return "runtime-" + arch
}

// ToolName returns the cache file name of a downloaded appimagetool for arch.
func ToolName(arch string) string {
	return "appimagetool-" + arch + ".AppImage"
}

// ToolStrategy runs appimagetool found on PATH, in the cache, or downloaded into the cache.
type ToolStrategy struct {
	Runner       toolexec.Runner
	Fetcher      *fetch.Fetcher
	Availability probe.Availability
	// Mirrors may contain the architecture placeholder; empty disables downloading.
	Mirrors []string
	Timeout time.Duration
}

// Name implements Strategy.
func (s *ToolStrategy) Name() string {
	return StrategyTool
}

// Assemble implements Strategy.
func (s *ToolStrategy) Assemble(ctx context.Context, in Input) error {
	ctx = logger.WithName(ctx, StrategyTool)

	tool, err := s.resolve(ctx, in.Arch)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := toolexec.Command{
		Path: tool,
		Args: []string{in.AppDir, in.OutputPath},
		Dir:  in.WorkDir,
		Env: []string{
			"ARCH=" + in.Arch,
			// Lets a downloaded appimagetool run without FUSE.
			"APPIMAGE_EXTRACT_AND_RUN=1",
		},
	}

	logger.InfoKV(ctx, "Running bundler tool", "command", cmd.String())

	if _, err = s.Runner.Run(ctx, cmd); err != nil {
		return err
	}

	if info, statErr := os.Stat(in.OutputPath); statErr != nil || info.Size() == 0 {
		return fmt.Errorf("%s: %s: %w", StrategyTool, in.OutputPath, errNoOutput)
	}

	return nil
}

func (s *ToolStrategy) resolve(ctx context.Context, arch string) (string, error) {
	if path := s.Availability.Path(probe.ToolAppImageTool); path != "" {
		return path, nil
	}

	if s.Fetcher != nil {
		if path, ok := s.Fetcher.Cached(ToolName(arch)); ok {
			return path, nil
		}

		if len(s.Mirrors) > 0 {
			return s.Fetcher.Fetch(ctx, fetch.Request{
				Name:    ToolName(arch),
				Mirrors: config.ExpandMirrors(s.Mirrors, arch),
			})
		}
	}

	return "", missingTool(probe.ToolAppImageTool, s.Availability.Distro)
}

// ManualStrategy downloads the runtime stub, builds the image with mksquashfs
// and concatenates both.
type ManualStrategy struct {
	Runner       toolexec.Runner
	Fetcher      *fetch.Fetcher
	Availability probe.Availability
	// Mirrors may contain the architecture placeholder.
	Mirrors []string
	// Checksum is the expected SHA-256 of the stub; nil skips verification.
	Checksum    []byte
	Compression string
	Timeout     time.Duration
}

// Name implements Strategy.
func (s *ManualStrategy) Name() string {
	return StrategyManual
}

// Assemble implements Strategy.
func (s *ManualStrategy) Assemble(ctx context.Context, in Input) error {
	ctx = logger.WithName(ctx, StrategyManual)

	stub, err := s.Fetcher.Fetch(ctx, fetch.Request{
		Name:     RuntimeName(in.Arch),
		Mirrors:  config.ExpandMirrors(s.Mirrors, in.Arch),
		Checksum: s.Checksum,
	})
	if err != nil {
		return fmt.Errorf("obtain runtime stub: %w", err)
	}

	mksquashfs := s.Availability.Path(probe.ToolMksquashfs)
	if mksquashfs == "" {
		return missingTool(probe.ToolMksquashfs, s.Availability.Distro)
	}

	compression := s.Compression
	if compression == "" {
		compression = config.DefaultSquashfsCompression
	}

	image := filepath.Join(in.WorkDir, imageName)

	toolCtx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := toolexec.Command{
		Path: mksquashfs,
		Args: []string{in.AppDir, image, "-root-owned", "-noappend", "-comp", compression},
		Dir:  in.WorkDir,
	}

	logger.InfoKV(ctx, "Building filesystem image", "command", cmd.String())

	if _, err = s.Runner.Run(toolCtx, cmd); err != nil {
		return fmt.Errorf("build filesystem image: %w", err)
	}

	if err = Assemble(stub, image, in.OutputPath); err != nil {
		return fmt.Errorf("assemble bundle: %w", err)
	}

	return nil
}

func missingTool(tool string, distro probe.Distro) error {
	return fmt.Errorf("%s not found (%s): %w", tool, probe.Remediation(tool, distro), build.ErrMissingDependency)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
