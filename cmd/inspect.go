package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/faceseed/internal/artifact"
	"github.com/andresmejia3/faceseed/internal/store"
)

var inspectPublished bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <artifact.json|dir>...",
	Short: "Check generated artifacts and print a summary per subject",
	Long: `Validates artifact files and prints one row per subject. With --published, lists the
subjects stored in the database instead.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if inspectPublished {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		if inspectPublished {
			db, err := openStore(cmd.Context())
			if err != nil {
				return fail(cmd, "Database unavailable", err)
			}
			defer db.Close(context.Background())

			if err := runInspectPublished(cmd.Context(), cmd.OutOrStdout(), db); err != nil {
				return fail(cmd, "Failed to list published subjects", err)
			}
			return nil
		}

		paths, err := expandArtifacts(args)
		if err != nil {
			return fail(cmd, "Failed to list artifacts", err)
		}

		if bad := runInspect(cmd.OutOrStdout(), paths); bad > 0 {
			return fail(cmd, "Invalid artifacts", fmt.Errorf("%d of %d artifacts failed validation", bad, len(paths)))
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectPublished, "published", false, "List subjects published to the database")
	rootCmd.AddCommand(inspectCmd)
}

// expandArtifacts replaces directory arguments with the artifacts they contain.
func expandArtifacts(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := artifact.List(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

// runInspect prints one row per artifact and returns the number of invalid ones.
func runInspect(out io.Writer, paths []string) int {
	if len(paths) == 0 {
		fmt.Fprintln(out, "No artifacts found.")
		return 0
	}

	bad := 0

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tSAMPLES\tDIM\tNORM\tBINARY")
	fmt.Fprintln(w, "-------\t-------\t---\t----\t------")

	for _, path := range paths {
		s, err := artifact.Summarize(path)
		if err != nil {
			bad++
			fmt.Fprintf(w, "%s\t-\t-\t-\tINVALID: %v\n", path, err)
			continue
		}

		binary := "no"
		switch {
		case s.BinaryErr != nil:
			bad++
			binary = "INVALID: " + s.BinaryErr.Error()
		case s.Binary:
			binary = "ok"
		}

		fmt.Fprintf(w, "%s\t%d\t%d\t%.3f-%.3f\t%s\n", s.StudentID, s.NumSamples, s.Dimension, s.MinNorm, s.MaxNorm, binary)
	}
	w.Flush()

	return bad
}

// subjectLister is the part of the store inspect --published needs.
type subjectLister interface {
	ListSubjects(ctx context.Context) ([]string, error)
	GetSubject(ctx context.Context, id string) (store.Subject, error)
}

// runInspectPublished prints one row per subject stored in the database.
func runInspectPublished(ctx context.Context, out io.Writer, db subjectLister) error {
	ids, err := db.ListSubjects(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No published subjects.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tSAMPLES\tDIM\tRUN")
	fmt.Fprintln(w, "-------\t-------\t---\t---")

	for _, id := range ids {
		sub, err := db.GetSubject(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", sub.ID, sub.NumSamples, sub.Dimension, sub.RunID)
	}
	return w.Flush()
}
