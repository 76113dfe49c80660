package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/logger"
	"github.com/oshokin/pkg-assembler/internal/service/builder"
	"github.com/oshokin/pkg-assembler/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is applied before any command runs.
	logLevel string

	// buildFlags override configuration values when set explicitly.
	buildFlags struct {
		outputDir       string
		cacheDir        string
		sourceDir       string
		targets         []string
		forceCrossBuild bool
		distro          string
	}

	// rootCmd builds every applicable package.
	rootCmd = &cobra.Command{
		Use:   "pkg-assembler",
		Short: "Assemble Debian packages, Linux bundles and Windows executables",
		Long: "Builds every target that applies to this host and publishes the artifacts\n" +
			"into the output directory. Exits with a non-zero status only when no target succeeded.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, err := logger.ParseLevel(logLevel)
			if err != nil {
				return err
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			options := &builder.Options{
				Config: cfg,
				Stdout: cmd.OutOrStdout(),
			}

			_, err = builder.Run(ctx, options)

			return err
		},
	}
)

// Execute runs the pkg-assembler CLI and exits with non-zero status on error.
func Execute() {
	defer logger.Sync()

	rootCmd.AddCommand(version.NewCommand(), newInspectCommand(), newStatusCommand())

	if err := rootCmd.Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, then applies the environment and
// explicitly set flags, in that order.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}

	config.ApplyEnvironment(cfg, os.Getenv)

	if flags.Changed("output") {
		cfg.OutputDir = buildFlags.outputDir
	}

	if flags.Changed("cache-dir") {
		cfg.CacheDir = buildFlags.cacheDir
	}

	if flags.Changed("source") {
		cfg.SourceDir = buildFlags.sourceDir
	}

	if flags.Changed("target") {
		cfg.Targets = buildFlags.targets
	}

	if flags.Changed("force-cross-build") {
		cfg.ForceCrossBuild = buildFlags.forceCrossBuild
	}

	if flags.Changed("distro") {
		cfg.DistroOverride = buildFlags.distro
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	persistent.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	flags := rootCmd.Flags()
	flags.StringVarP(&buildFlags.outputDir, "output", "o", config.DefaultOutputDir, "directory receiving the artifacts")
	flags.StringVar(&buildFlags.cacheDir, "cache-dir", "", "directory caching downloaded runtimes and tools")
	flags.StringVarP(&buildFlags.sourceDir, "source", "s", ".", "directory with the application files")
	flags.StringSliceVarP(&buildFlags.targets, "target", "t", nil,
		"target to build (windows-exe, linux-deb, linux-appimage); repeatable, default all")
	flags.BoolVar(&buildFlags.forceCrossBuild, "force-cross-build", false,
		"build every target that is not native to this host ("+config.EnvForceWindows+"=1 forces only windows-exe)")
	flags.StringVar(&buildFlags.distro, "distro", "",
		"distribution used for install hints instead of detection (also "+config.EnvDistroOverride+")")
}
