package builder

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/pkg-assembler/internal/domain/build"
)

// WriteSummary prints one row per target followed by the overall verdict.
func WriteSummary(w io.Writer, report *build.Report) error {
	writer := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)

	_, _ = fmt.Fprintln(writer, "TARGET\tOUTCOME\tSTRATEGY\tDETAIL")

	for _, result := range report.Results {
		detail := result.Message
		if result.Outcome == build.OutcomeSuccess {
			detail = fmt.Sprintf("%s (%s)", result.ArtifactPath, humanize.IBytes(uint64(max(result.Size, 0))))
		}

		_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			result.Target, strings.ToUpper(string(result.Outcome)), dash(result.Strategy), oneLine(detail))
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d succeeded, %d skipped, %d failed\n",
		report.Count(build.OutcomeSuccess), report.Count(build.OutcomeSkipped), report.Count(build.OutcomeFailed))

	return err
}

// WriteListing prints the output tree with human-readable file sizes.
func WriteListing(w io.Writer, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if strings.HasPrefix(entry.Name(), ".") && rel != "." {
			if entry.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		depth := 0
		if rel != "." {
			depth = strings.Count(rel, string(filepath.Separator)) + 1
		}

		indent := strings.Repeat("  ", depth)

		if entry.IsDir() {
			_, err = fmt.Fprintf(w, "%s%s/\n", indent, entry.Name())

			return err
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(w, "%s%s (%s)\n", indent, entry.Name(), humanize.IBytes(uint64(info.Size())))

		return err
	})
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

// oneLine keeps joined strategy errors on a single table row.
func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", "; ")
}
