package fetch

import (
	"bytes"
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/pkg-assembler/internal/domain/build"
	"github.com/oshokin/pkg-assembler/internal/logger"
	"github.com/oshokin/pkg-assembler/internal/version"

	// Ensure SHA256 is available for checksum verification.
	_ "crypto/sha256"
)

const (
	// ChecksumFunction verifies downloads that carry an expected digest.
	ChecksumFunction = crypto.SHA256

	// DefaultFileMode is applied to cached files; runtime stubs and tools are executable.
	DefaultFileMode os.FileMode = 0o755

	// maxDownloadSize guards against a misbehaving mirror streaming forever.
	maxDownloadSize = 512 << 20

	cacheDirMode os.FileMode = 0o755
)

var (
	errBadHTTPStatus    = errors.New("unexpected http status")
	errEmptyBody        = errors.New("empty response body")
	errTooLarge         = errors.New("response exceeds size limit")
	errChecksumMismatch = errors.New("checksum mismatch")
	errNoMirrors        = errors.New("no mirrors configured")
)

// Request describes one cached file and where to get it.
type Request struct {
	// Name is the file name inside the cache directory.
	Name string
	// Mirrors are absolute URLs tried in order.
	Mirrors []string
	// Checksum is the expected SHA-256 digest; nil skips verification.
	Checksum []byte
	// Mode of the cached file; zero means DefaultFileMode.
	Mode os.FileMode
}

// Fetcher downloads files into a cache directory.
type Fetcher struct {
	client    *http.Client
	cacheDir  string
	timeout   time.Duration
	userAgent string
}

// New creates a Fetcher. A nil client means http.DefaultClient; timeout bounds
// a single mirror attempt and is ignored when zero.
func New(cacheDir string, client *http.Client, timeout time.Duration) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &Fetcher{
		client:    client,
		cacheDir:  cacheDir,
		timeout:   timeout,
		userAgent: version.UserAgent(),
	}
}

// CacheDir returns the directory files are cached in.
func (f *Fetcher) CacheDir() string {
	return f.cacheDir
}

// Path returns where name is stored inside the cache.
func (f *Fetcher) Path(name string) string {
	return filepath.Join(f.cacheDir, name)
}

// Cached reports whether name is present in the cache with non-empty content.
func (f *Fetcher) Cached(name string) (string, bool) {
	target := f.Path(name)

	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return "", false
	}

	return target, true
}

// Fetch returns the cached path of req.Name, downloading it first when needed.
// It returns an error matching build.ErrDownloadFailure when every mirror failed.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (string, error) {
	ctx = logger.WithKV(logger.WithName(ctx, "fetch"), "file", req.Name)

	if target, ok := f.Cached(req.Name); ok {
		if err := verifyFile(target, req.Checksum); err == nil {
			logger.DebugKV(ctx, "Using cached file", "path", target)

			return target, nil
		}

		logger.Warn(ctx, "Cached file failed verification, downloading again")
	}

	if len(req.Mirrors) == 0 {
		return "", fmt.Errorf("%s: %w: %w", req.Name, build.ErrDownloadFailure, errNoMirrors)
	}

	if err := os.MkdirAll(f.cacheDir, cacheDirMode); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}

	target := f.Path(req.Name)

	attempts := make([]error, 0, len(req.Mirrors))

	for i, mirror := range req.Mirrors {
		logger.InfoKV(ctx, "Downloading", "mirror", mirror, "attempt", i+1, "of", len(req.Mirrors))

		err := f.fetchFrom(ctx, mirror, target, req)
		if err == nil {
			logger.InfoKV(ctx, "Downloaded", "mirror", mirror, "path", target)

			return target, nil
		}

		logger.WarnKV(ctx, "Mirror failed", "mirror", mirror, "error", err)
		attempts = append(attempts, fmt.Errorf("%s: %w", mirror, err))

		if ctx.Err() != nil {
			break
		}
	}

	if _, ok := f.Cached(req.Name); !ok {
		_ = os.Remove(target)
	}

	return "", fmt.Errorf("%s: %w: %w", req.Name, build.ErrDownloadFailure, errors.Join(attempts...))
}

// fetchFrom downloads one mirror and installs the body at target.
func (f *Fetcher) fetchFrom(ctx context.Context, mirror, target string, req Request) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	body, err := f.download(ctx, mirror)
	if err != nil {
		return err
	}

	return install(target, body, req)
}

func (f *Fetcher) download(ctx context.Context, mirror string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, mirror, http.NoBody)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("User-Agent", f.userAgent)

	response, err := f.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w", response.Status, errBadHTTPStatus)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	switch {
	case len(body) == 0:
		return nil, errEmptyBody
	case len(body) > maxDownloadSize:
		return nil, errTooLarge
	}

	return body, nil
}

// install applies body to target through go-update, which verifies the
// checksum before replacing anything.
func install(target string, body []byte, req Request) error {
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		placeholder, createErr := os.Create(filepath.Clean(target))
		if createErr != nil {
			return createErr
		}

		if createErr = placeholder.Close(); createErr != nil {
			return createErr
		}
	}

	mode := req.Mode
	if mode == 0 {
		mode = DefaultFileMode
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: mode,
		Checksum:   req.Checksum,
		Hash:       ChecksumFunction,
	}

	if err := goupdate.Apply(bytes.NewReader(body), options); err != nil {
		return fmt.Errorf("install %s: %w", target, err)
	}

	oldFileName := target + ".old"
	if _, err := os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// verifyFile checks a cached file against the expected digest.
func verifyFile(path string, checksum []byte) error {
	if len(checksum) == 0 {
		return nil
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}

	hasher := ChecksumFunction.New()
	_, _ = hasher.Write(content)

	if !bytes.Equal(hasher.Sum(nil), checksum) {
		return fmt.Errorf("%s: %w", path, errChecksumMismatch)
	}

	return nil
}

// ParseChecksum decodes a hex digest; an empty string yields nil.
func ParseChecksum(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	checksum, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode checksum: %w", err)
	}

	return checksum, nil
}
