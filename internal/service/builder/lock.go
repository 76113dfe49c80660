package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/pkg-assembler/internal/logger"
)

// LockFilename marks an output directory that a build is writing to right now.
const LockFilename = ".pkg-assembler.lock"

var errBuildInProgress = errors.New("another build is writing to the output directory")

// processAlive reports whether pid belongs to a running process. Tests replace it.
type processAlive func(pid int) (bool, error)

func psProcessAlive(pid int) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	return process != nil, nil
}

// buildLock is an exclusive marker file holding the owner's PID.
type buildLock struct {
	path string
}

// acquireLock creates the lock in dir. A lock left by a process that no
// longer exists is taken over.
func acquireLock(ctx context.Context, dir string, alive processAlive) (*buildLock, error) {
	path := filepath.Join(dir, LockFilename)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // path is derived from the output dir.
		if err == nil {
			_, err = f.WriteString(strconv.Itoa(os.Getpid()))
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}

			if err != nil {
				_ = os.Remove(path)

				return nil, fmt.Errorf("write build lock: %w", err)
			}

			return &buildLock{path: path}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create build lock: %w", err)
		}

		if !isStale(ctx, path, alive) {
			return nil, fmt.Errorf("%s: %w", path, errBuildInProgress)
		}

		logger.InfoKV(ctx, "Removing stale build lock", "path", path)

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale build lock: %w", err)
		}
	}

	return nil, fmt.Errorf("%s: %w", path, errBuildInProgress)
}

// isStale reports whether the lock owner is gone. Unreadable locks are stale.
func isStale(ctx context.Context, path string, alive processAlive) bool {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return errors.Is(err, os.ErrNotExist)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		logger.WarnKV(ctx, "Build lock has no valid owner", "path", path)

		return true
	}

	if pid == os.Getpid() {
		return false
	}

	running, err := alive(pid)
	if err != nil {
		logger.WarnKV(ctx, "Unable to list processes, assuming the lock is held", "error", err)

		return false
	}

	return !running
}

// release removes the lock file.
func (l *buildLock) release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release build lock: %w", err)
	}

	return nil
}
