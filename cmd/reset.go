package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/faceseed/internal/artifact"
)

var (
	resetDB     bool
	resetFiles  bool
	resetOutput string
	resetYes    bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset generated state (artifact files, seed tables)",
	Long:  "Clears generated data. By default, it resets everything. Use flags to clear specific components.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetFiles {
			resetDB = true
			resetFiles = true
		}

		reader := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		if resetFiles {
			if resetOutput == "" {
				return fail(cmd, "Invalid arguments", fmt.Errorf("--output is required to clear artifact files"))
			}
			if resetYes || confirm(out, reader, fmt.Sprintf("Are you sure you want to delete all artifacts in %s?", resetOutput)) {
				fmt.Fprintln(out, "Clearing artifact files...")
				n, err := removeArtifacts(resetOutput)
				if err != nil {
					return fail(cmd, "Failed to remove artifacts", err)
				}
				fmt.Fprintf(out, "Removed %d file(s).\n", n)
			}
		}

		if resetDB {
			if resetYes || confirm(out, reader, "Are you sure you want to DROP the seed tables?") {
				fmt.Fprintln(out, "Clearing Database...")
				db, err := openStore(cmd.Context())
				if err != nil {
					return fail(cmd, "Database unavailable", err)
				}
				defer db.Close(context.Background())

				if err := db.Reset(cmd.Context()); err != nil {
					return fail(cmd, "Failed to reset database", err)
				}
			}
		}

		fmt.Fprintln(out, "Reset complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "db", false, "Drop the seed tables")
	resetCmd.Flags().BoolVar(&resetFiles, "files", false, "Delete generated artifacts")
	resetCmd.Flags().StringVarP(&resetOutput, "output", "o", "", "Artifact directory to clear")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(out io.Writer, r *bufio.Reader, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

// removeArtifacts deletes the .json artifacts in dir and their .bin companions. Other files are
// left alone since the output directory may be shared.
func removeArtifacts(dir string) (int, error) {
	paths, err := artifact.List(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range paths {
		bin := strings.TrimSuffix(path, filepath.Ext(path)) + artifact.BinExt
		for _, p := range []string{path, bin} {
			if err := os.Remove(p); err == nil {
				removed++
			} else if !os.IsNotExist(err) {
				return removed, err
			}
		}
	}
	return removed, nil
}
