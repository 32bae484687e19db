package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/faceseed/internal/artifact"
	"github.com/andresmejia3/faceseed/internal/config"
	"github.com/andresmejia3/faceseed/internal/dlib"
	"github.com/andresmejia3/faceseed/internal/faces"
	"github.com/andresmejia3/faceseed/internal/seed"
	"github.com/andresmejia3/faceseed/internal/worker"
)

var genOpts Options

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one embedding artifact per subject folder",
	Long: `Scans every subject folder under --input, computes one face descriptor per photo and writes
<output>/<subject>.json (and <subject>.bin unless --bin=false). Photos without a face are skipped
with a warning; a subject without any usable photo is reported and the batch continues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		if err := validateGenerateFlags(cmd, &genOpts, cfg); err != nil {
			return fail(cmd, "Invalid arguments", err)
		}

		report, err := runGenerate(cmd.Context(), genOpts, cfg, cmd.ErrOrStderr())
		if err != nil {
			return fail(cmd, "Embedding generation failed", err)
		}

		printReport(cmd.OutOrStdout(), report, genOpts.OutputPath)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&genOpts.InputPath, "input", "i", "", "Root directory with one photo folder per subject")
	generateCmd.Flags().StringVarP(&genOpts.OutputPath, "output", "o", "", "Directory for the generated artifacts")
	generateCmd.Flags().BoolVar(&genOpts.Binary, "bin", true, "Also write <subject>.bin with raw little-endian float32 rows")
	generateCmd.Flags().StringVarP(&genOpts.Modes, "modes", "m", "", "Detector modes tried in order (default from config: hog,cnn)")
	generateCmd.Flags().StringVarP(&genOpts.Backend, "backend", "b", "", "Face backend: python or dlib (default from config: python)")
	generateCmd.Flags().BoolVar(&genOpts.NoProgress, "no-progress", false, "Disable the progress bar")

	generateCmd.MarkFlagRequired("input")
	generateCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(generateCmd)
}

// newProvider starts the configured face backend. Tests replace it with a fake.
var newProvider = func(ctx context.Context, c *config.Config) (faces.Provider, error) {
	switch c.Detector.Backend {
	case "dlib":
		r, err := dlib.New(c.Detector.ModelDir)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		// one worker at a time, replaced if it crashes or times out
		w, err := worker.NewSupervisor(ctx, worker.Options{
			Python:  c.Detector.Python,
			Script:  c.Detector.Script,
			Timeout: time.Duration(c.Detector.Timeout),
		})
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// validateGenerateFlags checks the input root and folds flag overrides into c.
func validateGenerateFlags(cmd *cobra.Command, opts *Options, c *config.Config) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s does not exist", seed.ErrInvalidInput, opts.InputPath)
		}
		return fmt.Errorf("%w: %v", seed.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", seed.ErrInvalidInput, opts.InputPath)
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("output directory must not be empty")
	}

	if cmd.Flags().Changed("bin") {
		c.Output.Binary = opts.Binary
	}
	if opts.Modes != "" {
		c.Detector.Modes = config.SplitList(opts.Modes)
	}
	if opts.Backend != "" {
		c.Detector.Backend = opts.Backend
	}

	return c.Validate()
}

// runGenerate starts the backend and runs one batch over opts.InputPath.
func runGenerate(ctx context.Context, opts Options, c *config.Config, progress io.Writer) (seed.Report, error) {
	modes, err := faces.ParseModes(c.Detector.Modes)
	if err != nil {
		return seed.Report{}, err
	}

	log.Infof("starting %s face backend", c.Detector.Backend)

	p, err := newProvider(ctx, c)
	if err != nil {
		return seed.Report{}, fmt.Errorf("failed to start %s face backend: %w", c.Detector.Backend, err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warnf("face backend did not shut down cleanly: %s", err)
		}
	}()

	b := seed.NewBatch(
		seed.NewExtractor(p, p, modes...),
		artifact.NewWriter(opts.OutputPath, c.Output.Binary),
	)
	if !opts.NoProgress {
		b.Progress = progress
	}

	return b.Run(ctx, opts.InputPath)
}

func printReport(w io.Writer, r seed.Report, output string) {
	fmt.Fprintf(w, "Run %s finished in %s\n", r.RunID, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  %s written to %s\n", english.Plural(len(r.Processed), "subject", "subjects"), output)
	if len(r.Failed) > 0 {
		fmt.Fprintf(w, "  %s failed\n", english.Plural(len(r.Failed), "subject", "subjects"))
	}
	if r.Skipped > 0 {
		fmt.Fprintf(w, "  %s skipped\n", english.Plural(r.Skipped, "photo", "photos"))
	}
}
