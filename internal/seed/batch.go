package seed

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/schollz/progressbar/v3"

	"github.com/andresmejia3/faceseed/internal/artifact"
)

// Report summarizes a batch run.
type Report struct {
	RunID     string
	Processed []string
	Failed    map[string]error
	Skipped   int // images dropped with a warning
	Elapsed   time.Duration
}

// Batch drives extraction and writing over all subjects of an input root.
type Batch struct {
	Extractor *Extractor
	Writer    *artifact.Writer

	// Progress receives a progress bar over subjects when set.
	Progress io.Writer
}

// NewBatch returns a batch writing through w.
func NewBatch(x *Extractor, w *artifact.Writer) *Batch {
	return &Batch{Extractor: x, Writer: w}
}

// Run processes every subject folder under input. It only returns an error when the input
// root is invalid or ctx is cancelled; per-subject failures are logged and reported.
func (b *Batch) Run(ctx context.Context, input string) (Report, error) {
	start := time.Now()
	report := Report{
		RunID:  ulid.Make().String(),
		Failed: make(map[string]error),
	}

	subjects, err := Scan(input, b.Writer.Dir)
	if err != nil {
		return report, err
	}

	log.Infof("seed: run %s found %d subject folder(s) in %s", report.RunID, len(subjects), input)

	var bar *progressbar.ProgressBar
	if b.Progress != nil {
		bar = progressbar.NewOptions(len(subjects),
			progressbar.OptionSetDescription("subjects"),
			progressbar.OptionSetWriter(b.Progress),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
	}

	skippedBefore := b.Extractor.Skipped

	for _, s := range subjects {
		if err := ctx.Err(); err != nil {
			report.Skipped = b.Extractor.Skipped - skippedBefore
			report.Elapsed = time.Since(start)
			return report, err
		}

		if _, err := uuid.Parse(s.ID); err != nil {
			log.Debugf("seed: subject folder %s is not a uuid", s.ID)
		}

		if err := b.processSubject(ctx, s); err != nil {
			// cancellation is not the subject's fault
			if ctx.Err() != nil {
				report.Skipped = b.Extractor.Skipped - skippedBefore
				report.Elapsed = time.Since(start)
				return report, ctx.Err()
			}
			log.Errorf("seed: failed to process %s: %s", s.ID, err)
			report.Failed[s.ID] = err
		} else {
			report.Processed = append(report.Processed, s.ID)
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	report.Skipped = b.Extractor.Skipped - skippedBefore
	report.Elapsed = time.Since(start)

	return report, nil
}

// processSubject extracts and writes one subject. Panics are turned into errors so they stay
// inside the subject boundary.
func (b *Batch) processSubject(ctx context.Context, s Subject) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Debugf("seed: %s panicked\nstack: %s", s.ID, debug.Stack())
		}
	}()

	table, sources, err := b.Extractor.Extract(ctx, s)
	if err != nil {
		return err
	}

	a, err := artifact.New(s.ID, table, sources)
	if err != nil {
		return err
	}

	_, err = b.Writer.Write(a)
	return err
}
