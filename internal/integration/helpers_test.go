package integration

import (
	"context"
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
	"github.com/oshokin/pkg-assembler/internal/probe"
	"github.com/oshokin/pkg-assembler/internal/toolexec"
)

var (
	runtimeStub   = []byte("RUNTIME-STUB-16B")
	squashfsImage = []byte("SQUASHFS")
)

// scriptedRunner pretends to be the external tools of a host.
type scriptedRunner struct {
	mu       sync.Mutex
	commands []toolexec.Command
	handlers map[string]func(cmd toolexec.Command) error
}

func (r *scriptedRunner) Run(_ context.Context, cmd toolexec.Command) (*toolexec.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	handler := r.handlers[filepath.Base(cmd.Path)]
	r.mu.Unlock()

	if handler == nil {
		return &toolexec.Result{ExitCode: 127}, &toolexec.ToolError{Tool: cmd.Path, ExitCode: 127}
	}

	if err := handler(cmd); err != nil {
		return &toolexec.Result{ExitCode: 1}, &toolexec.ToolError{Tool: cmd.Path, ExitCode: 1, Stderr: err.Error()}
	}

	return &toolexec.Result{}, nil
}

func (r *scriptedRunner) ran(tool string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cmd := range r.commands {
		if filepath.Base(cmd.Path) == tool {
			return true
		}
	}

	return false
}

// mksquashfsWritesImage emulates "mksquashfs <dir> <image> ...".
func mksquashfsWritesImage(cmd toolexec.Command) error {
	return os.WriteFile(cmd.Args[1], squashfsImage, 0o600)
}

// debianHost is a synthetic linux/amd64 Debian machine with the given tools in /usr/bin.
func debianHost(t *testing.T, tools ...string) probe.Platform {
	t.Helper()

	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/etc/debian_version", []byte("12.5\n"), 0o644))

	for _, tool := range tools {
		require.NoError(t, util.WriteFile(fs, filepath.Join("/usr/bin", tool), []byte("#!/bin/sh\n"), 0o755))
	}

	return probe.NewFSPlatform(fs, "linux", "amd64", []string{"/usr/bin"})
}

// runtimeMirror serves the runtime stub at /runtime-x86_64 and counts hits.
func runtimeMirror(t *testing.T) (*httptest.Server, *int) {
	t.Helper()

	var (
		mu   sync.Mutex
		hits int
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()

		if r.URL.Path != "/runtime-x86_64" {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write(runtimeStub)
	}))
	t.Cleanup(server.Close)

	return server, &hits
}

// projectConfig lays out application sources in a temporary project directory.
func projectConfig(t *testing.T, mirrors ...string) *config.Config {
	t.Helper()

	root := t.TempDir()

	cfg := config.Default()
	cfg.OutputDir = filepath.Join(root, "release")
	cfg.WorkDir = filepath.Join(root, "build")
	cfg.CacheDir = filepath.Join(root, "cache")
	cfg.SourceDir = filepath.Join(root, "src")
	cfg.ToolMirrors = nil

	if len(mirrors) > 0 {
		cfg.RuntimeMirrors = mirrors
	}

	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, cfg.Application.Script),
		[]byte("import tkinter\nprint('PyGenius')\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, cfg.Application.Launcher),
		[]byte("#!/bin/sh\nexec python3 /usr/share/pygenius/pygenius_desktop.py \"$@\"\n"), 0o600))

	return cfg
}
