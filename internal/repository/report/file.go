package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/domain/build"
)

// DefaultFilename is the report file name inside the output directory.
const DefaultFilename = "build-report.yaml"

// Repository defines persistence operations for build reports.
type Repository interface {
	Load(ctx context.Context) (*build.Report, error)
	Save(ctx context.Context, report *build.Report) error
}

// FileRepository persists the report to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the report file.
	path string
	// mu protects concurrent access to the report file.
	mu sync.Mutex
}

// ErrNotFound is returned when no report has been written yet.
var ErrNotFound = errors.New("report not found")

// NewFileRepository creates a repository that reads and writes YAML at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// ForOutputDir returns the repository of the report stored in outputDir.
func ForOutputDir(outputDir string) *FileRepository {
	return NewFileRepository(filepath.Join(outputDir, DefaultFilename))
}

// Path returns the report file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the report from disk.
func (r *FileRepository) Load(_ context.Context) (*build.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read report file: %w", err)
	}

	var report build.Report
	if err = yaml.Unmarshal(contents, &report); err != nil {
		return nil, fmt.Errorf("decode report file: %w", err)
	}

	return &report, nil
}

// Save writes the report to disk.
func (r *FileRepository) Save(_ context.Context, report *build.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}

	return nil
}
