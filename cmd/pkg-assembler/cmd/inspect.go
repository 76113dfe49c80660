package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oshokin/pkg-assembler/internal/archive/deb"
)

func newInspectCommand() *cobra.Command {
	var contents bool

	command := &cobra.Command{
		Use:   "inspect FILE",
		Short: "List the members of a Debian package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := deb.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("inspect %s: %w", args[0], err)
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 0, 3, ' ', 0)
			_, _ = fmt.Fprintln(writer, "NAME\tMODE\tSIZE")

			for _, member := range members {
				_, _ = fmt.Fprintf(writer, "%s\t%04o\t%d\n", member.Name, member.Mode.Perm(), len(member.Data))

				if !contents || !strings.HasSuffix(member.Name, ".tar.gz") {
					continue
				}

				entries, tarErr := deb.ReadTarball(member.Data)
				if tarErr != nil {
					return fmt.Errorf("%s: %w", member.Name, tarErr)
				}

				for _, entry := range entries {
					_, _ = fmt.Fprintf(writer, "  %s\t%04o\t%d\n", entry.Name, entry.Mode, entry.Size)
				}
			}

			return writer.Flush()
		},
	}

	command.Flags().BoolVar(&contents, "contents", false, "also list the entries of the inner tarballs")

	return command
}
