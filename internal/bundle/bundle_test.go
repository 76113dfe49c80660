package bundle

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/domain/build"
	"github.com/oshokin/pkg-assembler/internal/fetch"
	"github.com/oshokin/pkg-assembler/internal/manifest"
	"github.com/oshokin/pkg-assembler/internal/probe"
	"github.com/oshokin/pkg-assembler/internal/toolexec"
)

var (
	stubBytes  = []byte("RUNTIME-STUB-16B")
	imageBytes = []byte("SQUASHFS")
)

// fakeRunner records commands and delegates behaviour to a per-tool handler.
type fakeRunner struct {
	mu       sync.Mutex
	commands []toolexec.Command
	handlers map[string]func(cmd toolexec.Command) error
}

func (r *fakeRunner) Run(_ context.Context, cmd toolexec.Command) (*toolexec.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	handler := r.handlers[cmd.Path]
	r.mu.Unlock()

	if handler == nil {
		return &toolexec.Result{ExitCode: 127}, &toolexec.ToolError{Tool: cmd.Path, ExitCode: 127}
	}

	if err := handler(cmd); err != nil {
		return &toolexec.Result{ExitCode: 1, Stderr: err.Error()},
			&toolexec.ToolError{Tool: cmd.Path, Args: cmd.Args, ExitCode: 1, Stderr: err.Error()}
	}

	return &toolexec.Result{}, nil
}

var errBundlerCrashed = errors.New("bundler crashed")

func writeImage(cmd toolexec.Command) error {
	return os.WriteFile(cmd.Args[1], imageBytes, 0o600)
}

func stubServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/runtime-x86_64" {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write(stubBytes)
	}))
	t.Cleanup(server.Close)

	return server
}

func testInput(t *testing.T) Input {
	t.Helper()

	dir := t.TempDir()
	appDir := filepath.Join(dir, "AppDir")
	require.NoError(t, os.MkdirAll(appDir, 0o755))

	return Input{
		AppDir:     appDir,
		WorkDir:    dir,
		OutputPath: filepath.Join(dir, "App-x86_64.AppImage"),
		Arch:       "x86_64",
	}
}

// TestAssemble_ExactConcatenation joins a 16-byte stub and an 8-byte image without framing.
func TestAssemble_ExactConcatenation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stub := filepath.Join(dir, "stub")
	image := filepath.Join(dir, "image")
	out := filepath.Join(dir, "out.AppImage")

	require.NoError(t, os.WriteFile(stub, stubBytes, 0o600))
	require.NoError(t, os.WriteFile(image, imageBytes, 0o600))
	require.Len(t, stubBytes, 16)
	require.Len(t, imageBytes, 8)

	require.NoError(t, Assemble(stub, image, out))

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, content, 24)
	require.Equal(t, append(bytes.Clone(stubBytes), imageBytes...), content)

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

// TestAssemble_MissingImage leaves nothing at the output path.
func TestAssemble_MissingImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stub := filepath.Join(dir, "stub")
	out := filepath.Join(dir, "out.AppImage")

	require.NoError(t, os.WriteFile(stub, stubBytes, 0o600))
	require.Error(t, Assemble(stub, filepath.Join(dir, "missing"), out))

	_, err := os.Stat(out)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestManualStrategy_MissingCompressor fails with a missing dependency naming the package.
func TestManualStrategy_MissingCompressor(t *testing.T) {
	t.Parallel()

	server := stubServer(t)
	in := testInput(t)

	strategy := &ManualStrategy{
		Runner:       &fakeRunner{},
		Fetcher:      fetch.New(t.TempDir(), server.Client(), 0),
		Availability: probe.Availability{Distro: probe.DistroDebian},
		Mirrors:      []string{server.URL + "/runtime-" + config.ArchPlaceholder},
	}

	err := strategy.Assemble(context.Background(), in)
	require.ErrorIs(t, err, build.ErrMissingDependency)
	require.Contains(t, err.Error(), "squashfs-tools")

	_, statErr := os.Stat(in.OutputPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

// TestManualStrategy_DownloadFailure reports exhausted mirrors.
func TestManualStrategy_DownloadFailure(t *testing.T) {
	t.Parallel()

	server := stubServer(t)

	strategy := &ManualStrategy{
		Runner:       &fakeRunner{},
		Fetcher:      fetch.New(t.TempDir(), server.Client(), 0),
		Availability: probe.Availability{}.WithTool(probe.ToolMksquashfs, "/usr/bin/mksquashfs"),
		Mirrors:      []string{server.URL + "/nope", server.URL + "/gone"},
	}

	err := strategy.Assemble(context.Background(), testInput(t))
	require.ErrorIs(t, err, build.ErrDownloadFailure)
}

// TestAssembler_FallsBackToManual uses the manual strategy after the bundler tool fails.
func TestAssembler_FallsBackToManual(t *testing.T) {
	t.Parallel()

	server := stubServer(t)
	in := testInput(t)

	runner := &fakeRunner{handlers: map[string]func(toolexec.Command) error{
		"/usr/bin/appimagetool": func(toolexec.Command) error { return errBundlerCrashed },
		"/usr/bin/mksquashfs":   writeImage,
	}}

	avail := probe.Availability{}.
		WithTool(probe.ToolAppImageTool, "/usr/bin/appimagetool").
		WithTool(probe.ToolMksquashfs, "/usr/bin/mksquashfs")

	fetcher := fetch.New(t.TempDir(), server.Client(), 0)

	assembler := NewAssembler(
		&ToolStrategy{Runner: runner, Fetcher: fetcher, Availability: avail},
		&ManualStrategy{
			Runner:       runner,
			Fetcher:      fetcher,
			Availability: avail,
			Mirrors:      []string{server.URL + "/runtime-{arch}"},
		},
	)

	name, err := assembler.Build(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, StrategyManual, name)

	content, err := os.ReadFile(in.OutputPath)
	require.NoError(t, err)
	require.Equal(t, append(bytes.Clone(stubBytes), imageBytes...), content)

	require.Len(t, runner.commands, 2)
	require.Contains(t, runner.commands[0].Env, "ARCH=x86_64")
	require.Equal(t, []string{in.AppDir, filepath.Join(in.WorkDir, imageName), "-root-owned", "-noappend", "-comp", "gzip"},
		runner.commands[1].Args)
}

// TestAssembler_ToolSuccess stops at the bundler tool when it produces output.
func TestAssembler_ToolSuccess(t *testing.T) {
	t.Parallel()

	in := testInput(t)

	runner := &fakeRunner{handlers: map[string]func(toolexec.Command) error{
		"/opt/appimagetool": func(cmd toolexec.Command) error {
			return os.WriteFile(cmd.Args[1], []byte("bundle"), 0o600)
		},
	}}

	avail := probe.Availability{}.WithTool(probe.ToolAppImageTool, "/opt/appimagetool")

	name, err := NewAssembler(
		&ToolStrategy{Runner: runner, Availability: avail},
		&ManualStrategy{Runner: runner},
	).Build(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, StrategyTool, name)
	require.Len(t, runner.commands, 1)
}

// TestAssembler_AllFail joins the causes of both strategies.
func TestAssembler_AllFail(t *testing.T) {
	t.Parallel()

	server := stubServer(t)

	runner := &fakeRunner{handlers: map[string]func(toolexec.Command) error{
		"/usr/bin/appimagetool": func(toolexec.Command) error { return nil },
	}}

	avail := probe.Availability{Distro: probe.DistroFedora}.WithTool(probe.ToolAppImageTool, "/usr/bin/appimagetool")
	fetcher := fetch.New(t.TempDir(), server.Client(), 0)

	_, err := NewAssembler(
		&ToolStrategy{Runner: runner, Fetcher: fetcher, Availability: avail},
		&ManualStrategy{Runner: runner, Fetcher: fetcher, Availability: avail, Mirrors: []string{server.URL + "/runtime-{arch}"}},
	).Build(context.Background(), testInput(t))

	require.ErrorIs(t, err, errNoOutput)
	require.ErrorIs(t, err, build.ErrMissingDependency)
	require.Contains(t, err.Error(), "dnf install squashfs-tools")
}

// TestToolStrategy_UsesCachedTool picks appimagetool from the cache when it is not on PATH.
func TestToolStrategy_UsesCachedTool(t *testing.T) {
	t.Parallel()

	cacheDir := t.TempDir()
	cached := filepath.Join(cacheDir, ToolName("x86_64"))
	require.NoError(t, os.WriteFile(cached, []byte("#!/bin/sh\n"), 0o700)) //nolint:gosec // test fixture.

	runner := &fakeRunner{handlers: map[string]func(toolexec.Command) error{
		cached: func(cmd toolexec.Command) error {
			return os.WriteFile(cmd.Args[1], []byte("bundle"), 0o600)
		},
	}}

	strategy := &ToolStrategy{Runner: runner, Fetcher: fetch.New(cacheDir, nil, 0)}
	require.NoError(t, strategy.Assemble(context.Background(), testInput(t)))
}

// TestToolStrategy_Unavailable reports the missing tool without running anything.
func TestToolStrategy_Unavailable(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	strategy := &ToolStrategy{Runner: runner, Fetcher: fetch.New(t.TempDir(), nil, 0)}

	err := strategy.Assemble(context.Background(), testInput(t))
	require.ErrorIs(t, err, build.ErrMissingDependency)
	require.Empty(t, runner.commands)
}

// TestStageAppDir writes the entry point, root desktop entry, icon placeholder and data files.
func TestStageAppDir(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	src := memfs.New()
	require.NoError(t, util.WriteFile(src, cfg.Application.Script, []byte("print('hi')\n"), 0o644))
	require.NoError(t, util.WriteFile(src, cfg.Application.Launcher, []byte("#!/bin/sh\n"), 0o755))

	m, err := manifest.NewBuilder(src, cfg.Application, cfg.Package).Build()
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, StageAppDir(m, cfg.Application, cfg.Package, "x86_64", dir))

	appRun, err := os.Stat(filepath.Join(dir, AppRunName))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), appRun.Mode().Perm())

	desktop, err := os.ReadFile(filepath.Join(dir, cfg.Application.Command+".desktop"))
	require.NoError(t, err)
	require.Contains(t, string(desktop), "Exec=AppRun\n")
	require.Contains(t, string(desktop), "X-AppImage-Arch=x86_64\n")

	icon, err := os.Stat(filepath.Join(dir, cfg.Application.Icon))
	require.NoError(t, err)
	require.Zero(t, icon.Size())

	for _, entry := range m.Data() {
		info, statErr := os.Stat(filepath.Join(dir, filepath.FromSlash(entry.Path)))
		require.NoError(t, statErr, entry.Path)
		require.Equal(t, entry.Mode, info.Mode().Perm(), entry.Path)
	}
}

// TestFileName builds the conventional bundle name.
func TestFileName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "PyGeniusAI-x86_64.AppImage", FileName(config.Default().Application, "x86_64"))
}
