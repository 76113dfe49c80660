package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/pkg-assembler/internal/config"
	"github.com/oshokin/pkg-assembler/internal/repository/report"
	"github.com/oshokin/pkg-assembler/internal/service/builder"
)

func newStatusCommand() *cobra.Command {
	var outputDir string

	command := &cobra.Command{
		Use:   "status",
		Short: "Show the report of the last build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := resolveOutputDir(cmd.Flags(), configPath, outputDir)
			if err != nil {
				return err
			}

			repo := report.ForOutputDir(dir)

			last, err := repo.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", repo.Path(), err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "pkg-assembler %s on %s/%s (%s), finished %s\n\n",
				last.Version, last.Host.OS, last.Host.Arch, last.Host.Distro, last.FinishedAt.Format("2006-01-02 15:04:05 MST"))

			return builder.WriteSummary(out, last)
		},
	}

	command.Flags().StringVarP(&outputDir, "output", "o", config.DefaultOutputDir,
		"directory holding the build report (default: output_dir of the configuration)")

	return command
}

// resolveOutputDir prefers an explicit --output over the configured output directory.
func resolveOutputDir(flags *pflag.FlagSet, configFile, outputDir string) (string, error) {
	if flags.Changed("output") {
		return outputDir, nil
	}

	cfg, err := config.LoadOrDefault(configFile)
	if err != nil {
		return "", fmt.Errorf("load configuration: %w", err)
	}

	return cfg.OutputDir, nil
}
