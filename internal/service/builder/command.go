package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/domain/build"
	"github.com/oshokin/pkg-assembler/internal/fetch"
	"github.com/oshokin/pkg-assembler/internal/logger"
	"github.com/oshokin/pkg-assembler/internal/manifest"
	"github.com/oshokin/pkg-assembler/internal/probe"
	"github.com/oshokin/pkg-assembler/internal/repository/report"
	"github.com/oshokin/pkg-assembler/internal/toolexec"
	"github.com/oshokin/pkg-assembler/internal/version"
)

// ErrNoTargetSucceeded is returned by Run when not a single artifact was produced.
var ErrNoTargetSucceeded = errors.New("no target succeeded")

var errUnknownTarget = errors.New("unknown target")

// Options are inputs accepted by the builder entry point.
type Options struct {
	// ConfigPath is read when Config is nil; a missing file means defaults.
	ConfigPath string
	// Config is the already loaded configuration, environment overrides included.
	Config *config.Config
	// Platform describes the host; nil means the real one.
	Platform probe.Platform
	// Runner executes external tools; nil means os/exec.
	Runner toolexec.Runner
	// HTTPClient downloads runtime stubs; nil means http.DefaultClient.
	HTTPClient *http.Client
	// Targets overrides the default target set.
	Targets []*Target
	// Stdout receives the summary table and the release listing; nil means os.Stdout.
	Stdout io.Writer
}

// runner holds the state of a single build invocation.
// Callers go through Run.
type runner struct {
	cfg          *config.Config
	targets      []*Target
	availability probe.Availability
	tools        toolexec.Runner
	fetcher      *fetch.Fetcher
	publisher    *publisher
	reports      report.Repository
	stdout       io.Writer
	// manifest is nil when staging failed; manifestErr then holds the cause.
	manifest    *manifest.PackageManifest
	manifestErr error
	alive       processAlive
}

// Run builds every requested target and returns the report. The error is
// ErrNoTargetSucceeded when the report holds no success.
func Run(ctx context.Context, opts *Options) (*build.Report, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "pkg-assembler")

	r, err := newRunner(opts)
	if err != nil {
		return nil, err
	}

	return r.Run(ctx)
}

func newRunner(opts *Options) (*runner, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error

		cfg, err = config.LoadOrDefault(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
	} else if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	targets := opts.Targets
	if targets == nil {
		targets = DefaultTargets()
	}

	targets, err := selectTargets(targets, cfg.Targets)
	if err != nil {
		return nil, err
	}

	platform := opts.Platform
	if platform == nil {
		platform = probe.HostPlatform()
	}

	tools := opts.Runner
	if tools == nil {
		tools = toolexec.NewExecRunner()
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	return &runner{
		cfg:          cfg,
		targets:      targets,
		availability: probe.Probe(platform, probe.DefaultTools(), cfg.DistroOverride),
		tools:        tools,
		fetcher:      fetch.New(cfg.CacheDir, opts.HTTPClient, cfg.DownloadTimeout),
		publisher:    newPublisher(cfg.OutputDir),
		reports:      report.ForOutputDir(cfg.OutputDir),
		stdout:       stdout,
		alive:        psProcessAlive,
	}, nil
}

// Run executes the workflow for this runner instance:
// 1) Lock the output directory.
// 2) Stage the package manifest.
// 3) Build every target.
// 4) Write sums, report and summary.
func (r *runner) Run(ctx context.Context) (*build.Report, error) {
	if err := os.MkdirAll(r.cfg.OutputDir, outputDirMode); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	lock, err := acquireLock(ctx, r.cfg.OutputDir, r.alive)
	if err != nil {
		return nil, err
	}

	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			logger.WarnKV(ctx, "Unable to release build lock", "error", releaseErr)
		}
	}()

	logger.InfoKV(ctx, "Probed host",
		"os", r.availability.OS,
		"arch", r.availability.Arch,
		"distro", r.availability.Distro,
		"tools", r.foundTools())

	if err = r.publisher.clean([]string{FamilyLinux, FamilyWindows}); err != nil {
		return nil, err
	}

	r.stageManifest(ctx)

	buildReport := &build.Report{
		Version:   version.Short(),
		StartedAt: time.Now().UTC(),
		Host: build.Host{
			OS:     r.availability.OS,
			Arch:   r.availability.Arch,
			Distro: string(r.availability.Distro),
			Tools:  r.foundTools(),
		},
	}

	for _, target := range r.targets {
		result := r.buildTarget(ctx, target)
		logger.InfoKV(ctx, "Target finished", "target", result.Target, "outcome", result.Outcome)
		buildReport.Results = append(buildReport.Results, result)
	}

	buildReport.FinishedAt = time.Now().UTC()

	r.finish(ctx, buildReport)

	if !buildReport.Success() {
		return buildReport, ErrNoTargetSucceeded
	}

	return buildReport, nil
}

// stageManifest builds the package manifest once for every target that needs it.
func (r *runner) stageManifest(ctx context.Context) {
	src := osfs.New(r.cfg.SourceDir)

	r.manifest, r.manifestErr = manifest.NewBuilder(src, r.cfg.Application, r.cfg.Package).Build()
	if r.manifestErr != nil {
		logger.WarnKV(ctx, "Unable to stage package contents", "error", r.manifestErr)

		return
	}

	logger.InfoKV(ctx, "Staged package contents",
		"control", len(r.manifest.Control()), "data", len(r.manifest.Data()))
}

// buildTarget runs the target's strategies and converts the outcome into a Result.
func (r *runner) buildTarget(ctx context.Context, target *Target) build.Result {
	ctx = logger.WithKV(ctx, "target", target.ID)

	force := r.cfg.ForceCrossBuild || slices.Contains(r.cfg.ForceTargets, string(target.ID))
	if !target.Applicable(r.availability.OS, force) {
		err := fmt.Errorf("%s builds on %s, host is %s: %w",
			target.ID, strings.Join(target.Platforms, ","), r.availability.OS, build.ErrPlatformMismatch)
		logger.Info(ctx, "Skipping target")

		return build.FromError(target.ID, err)
	}

	if target.NeedsManifest && r.manifestErr != nil {
		return build.FromError(target.ID, r.manifestErr)
	}

	if err := os.MkdirAll(r.cfg.WorkDir, outputDirMode); err != nil {
		return build.FromError(target.ID, fmt.Errorf("create work directory: %w", err))
	}

	workDir, err := os.MkdirTemp(r.cfg.WorkDir, string(target.ID)+"-")
	if err != nil {
		return build.FromError(target.ID, fmt.Errorf("create work directory: %w", err))
	}

	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	job := &Job{
		Config:       r.cfg,
		Manifest:     r.manifest,
		Availability: r.availability,
		Runner:       r.tools,
		Fetcher:      r.fetcher,
		WorkDir:      workDir,
	}
	job.ArtifactName = target.ArtifactName(job)

	strategy, err := r.runStrategies(ctx, target, job)
	if err != nil {
		return build.FromError(target.ID, err)
	}

	published, err := r.publisher.publish(job.OutputPath(), target.Family, job.ArtifactName)
	if err != nil {
		return build.FromError(target.ID, err)
	}

	if target.Companions != nil {
		for name, content := range target.Companions(r.cfg) {
			if err = r.publisher.writeCompanion(target.Family, name, content); err != nil {
				return build.FromError(target.ID, err)
			}
		}
	}

	digest, size, err := digestFile(published)
	if err != nil {
		return build.FromError(target.ID, err)
	}

	relative, err := filepath.Rel(r.cfg.OutputDir, published)
	if err != nil {
		relative = published
	}

	logger.InfoKV(ctx, "Published artifact", "path", published, "strategy", strategy, "blake3", digest)

	return build.Succeeded(target.ID, strategy, filepath.ToSlash(relative), size, digest)
}

// runStrategies tries each strategy in order. The causes of all failed
// strategies are joined when none succeeds.
func (r *runner) runStrategies(ctx context.Context, target *Target, job *Job) (string, error) {
	causes := make([]error, 0, len(target.Strategies))

	for _, strategy := range target.Strategies {
		strategyCtx := logger.WithKV(ctx, "strategy", strategy.Name())

		logger.Info(strategyCtx, "Trying strategy")

		used, err := strategy.Build(strategyCtx, job)
		if err == nil {
			return used, nil
		}

		logger.WarnKV(strategyCtx, "Strategy failed", "error", err)
		causes = append(causes, fmt.Errorf("%s: %w", strategy.Name(), err))

		_ = os.Remove(job.OutputPath())
	}

	if len(causes) == 0 {
		return "", fmt.Errorf("%s has no strategies: %w", target.ID, build.ErrMissingDependency)
	}

	return "", errors.Join(causes...)
}

// finish writes the sums file, persists the report and prints the summary.
// Failures here are logged: the artifacts are already published.
func (r *runner) finish(ctx context.Context, buildReport *build.Report) {
	if artifacts := buildReport.Artifacts(); len(artifacts) > 0 {
		if err := r.publisher.writeSums(artifacts); err != nil {
			logger.WarnKV(ctx, "Unable to write checksums", "error", err)
		}
	}

	if err := r.reports.Save(ctx, buildReport); err != nil {
		logger.WarnKV(ctx, "Unable to save build report", "error", err)
	}

	_, _ = fmt.Fprintln(r.stdout, "BUILD SUMMARY")

	if err := WriteSummary(r.stdout, buildReport); err != nil {
		logger.WarnKV(ctx, "Unable to print summary", "error", err)
	}

	_, _ = fmt.Fprintln(r.stdout, "\nRELEASE FILES")

	if err := WriteListing(r.stdout, r.cfg.OutputDir); err != nil {
		logger.WarnKV(ctx, "Unable to list release files", "error", err)
	}

	for _, result := range buildReport.Results {
		if result.Outcome == build.OutcomeFailed {
			logger.ErrorKV(ctx, "Target failed", "target", result.Target, "reason", result.Message)
		}
	}
}

func (r *runner) foundTools() []string {
	found := make([]string, 0, len(r.availability.Tools()))

	for _, tool := range r.availability.Tools() {
		if r.availability.Has(tool) {
			found = append(found, tool)
		}
	}

	return found
}

func unknownTargetError(id string, targets []*Target) error {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, string(t.ID))
	}

	return fmt.Errorf("%q (known: %s): %w", id, strings.Join(names, ", "), errUnknownTarget)
}
