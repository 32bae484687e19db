// Package artifact builds, writes and reads the per-subject embedding files.
package artifact

import (
	"errors"
	"fmt"
	"math"

	"github.com/andresmejia3/faceseed/internal/faces"
)

// ErrInvalid marks an artifact that breaks the row/sample invariants.
var ErrInvalid = errors.New("invalid artifact")

// Table is the ordered stack of one subject's descriptors, shape (N, faces.Dim).
type Table struct {
	rows []faces.Descriptor
}

// Append adds a row.
func (t *Table) Append(d faces.Descriptor) {
	t.rows = append(t.rows, d)
}

// Rows returns N.
func (t *Table) Rows() int {
	return len(t.rows)
}

// Dim returns D.
func (t *Table) Dim() int {
	return faces.Dim
}

// Nested returns the table as nested slices, one per row.
func (t *Table) Nested() [][]float32 {
	out := make([][]float32, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Slice()
	}
	return out
}

// Artifact is the JSON metadata record written for one subject.
type Artifact struct {
	StudentID  string      `json:"studentId"`
	Samples    []string    `json:"samples"`
	NumSamples int         `json:"numSamples"`
	Dimension  int         `json:"dimension"`
	Embeddings [][]float32 `json:"embeddings"`
}

// New builds the artifact for a subject. sources must be parallel to the table rows.
func New(subjectID string, table *Table, sources []string) (*Artifact, error) {
	a := &Artifact{
		StudentID:  subjectID,
		Samples:    append([]string(nil), sources...),
		NumSamples: table.Rows(),
		Dimension:  table.Dim(),
		Embeddings: table.Nested(),
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

// Validate checks that samples, numSamples and embeddings agree, that every row has
// exactly dimension finite components, and that there is at least one row.
func (a *Artifact) Validate() error {
	switch {
	case a.StudentID == "":
		return fmt.Errorf("%w: empty studentId", ErrInvalid)
	case a.NumSamples < 1:
		return fmt.Errorf("%w: %s has no samples", ErrInvalid, a.StudentID)
	case len(a.Samples) != a.NumSamples:
		return fmt.Errorf("%w: %s lists %d samples but numSamples is %d", ErrInvalid, a.StudentID, len(a.Samples), a.NumSamples)
	case len(a.Embeddings) != a.NumSamples:
		return fmt.Errorf("%w: %s has %d embeddings but numSamples is %d", ErrInvalid, a.StudentID, len(a.Embeddings), a.NumSamples)
	case a.Dimension != faces.Dim:
		return fmt.Errorf("%w: %s has dimension %d, want %d", ErrInvalid, a.StudentID, a.Dimension, faces.Dim)
	}

	for i, row := range a.Embeddings {
		if len(row) != a.Dimension {
			return fmt.Errorf("%w: %s row %d has %d components", ErrInvalid, a.StudentID, i, len(row))
		}
		for _, v := range row {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return fmt.Errorf("%w: %s row %d is not finite", ErrInvalid, a.StudentID, i)
			}
		}
	}

	return nil
}
