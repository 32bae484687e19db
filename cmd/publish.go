package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/dustin/go-humanize/english"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/faceseed/internal/artifact"
	"github.com/andresmejia3/faceseed/internal/store"
)

var publishInput string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload generated artifacts into PostgreSQL (pgvector)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		paths, err := artifact.List(publishInput)
		if err != nil {
			return fail(cmd, "Failed to list artifacts", err)
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return fail(cmd, "Database unavailable", err)
		}
		// Use Background here because the main context might be cancelled already (due to Ctrl+C)
		defer db.Close(context.Background())

		if err := runPublish(cmd.Context(), cmd.OutOrStdout(), db, paths); err != nil {
			return fail(cmd, "Publishing failed", err)
		}
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVarP(&publishInput, "input", "i", "", "Directory with generated artifacts")
	publishCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(publishCmd)
}

// publisher is the part of the store publish needs.
type publisher interface {
	PublishArtifact(ctx context.Context, runID string, a *artifact.Artifact) error
	GetSubject(ctx context.Context, id string) (store.Subject, error)
	SubjectEmbeddings(ctx context.Context, id string) ([][]float32, []string, error)
}

// runPublish uploads every valid artifact under one run ID and reads each subject back.
// Invalid artifacts are skipped with an error log; a database error or a mismatched read
// back stops the run.
func runPublish(ctx context.Context, out io.Writer, db publisher, paths []string) error {
	runID := ulid.Make().String()
	published, invalid := 0, 0

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		a, err := artifact.Load(path)
		if err != nil {
			invalid++
			log.Errorf("publish: skipping %s: %s", path, err)
			continue
		}

		if err := db.PublishArtifact(ctx, runID, a); err != nil {
			return fmt.Errorf("publishing %s: %w", a.StudentID, err)
		}
		if err := verifyPublished(ctx, db, runID, a); err != nil {
			return fmt.Errorf("verifying %s: %w", a.StudentID, err)
		}
		published++
	}

	fmt.Fprintf(out, "Published %s (run %s)\n", english.Plural(published, "subject", "subjects"), runID)
	if invalid > 0 {
		fmt.Fprintf(out, "Skipped %s\n", english.Plural(invalid, "invalid artifact", "invalid artifacts"))
	}
	return nil
}

// verifyPublished checks that the stored subject matches the artifact it came from.
func verifyPublished(ctx context.Context, db publisher, runID string, a *artifact.Artifact) error {
	sub, err := db.GetSubject(ctx, a.StudentID)
	if err != nil {
		return err
	}
	if sub.RunID != runID || sub.NumSamples != a.NumSamples || sub.Dimension != a.Dimension {
		return fmt.Errorf("stored as %d x %d (run %s), want %d x %d (run %s)",
			sub.NumSamples, sub.Dimension, sub.RunID, a.NumSamples, a.Dimension, runID)
	}

	rows, sources, err := db.SubjectEmbeddings(ctx, a.StudentID)
	if err != nil {
		return err
	}
	if len(rows) != a.NumSamples || !slices.Equal(sources, a.Samples) {
		return fmt.Errorf("stored %d embeddings from %v, want %d from %v", len(rows), sources, a.NumSamples, a.Samples)
	}

	log.Debugf("publish: verified %s", a.StudentID)
	return nil
}
