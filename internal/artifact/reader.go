package artifact

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"gonum.org/v1/gonum/floats"
)

// Load reads and validates a JSON artifact.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	if err := a.Validate(); err != nil {
		return &a, err
	}

	return &a, nil
}

// DecodeBinary reads rows*dim little-endian float32 values. The payload must have exactly
// that size.
func DecodeBinary(data []byte, rows, dim int) ([][]float32, error) {
	if want := rows * dim * 4; len(data) != want {
		return nil, fmt.Errorf("%w: binary payload has %d bytes, want %d", ErrInvalid, len(data), want)
	}

	out := make([][]float32, rows)
	for i := range out {
		row := make([]float32, dim)
		for j := range row {
			off := (i*dim + j) * 4
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		}
		out[i] = row
	}
	return out, nil
}

// List returns the JSON artifacts directly inside dir, sorted by name.
func List(dir string) ([]string, error) {
	names, err := godirwalk.ReadDirnames(dir, nil)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, name := range names {
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), JSONExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)

	return paths, nil
}

// Summary describes one artifact on disk.
type Summary struct {
	StudentID  string
	NumSamples int
	Dimension  int
	MinNorm    float64
	MaxNorm    float64
	Binary     bool // companion payload present and consistent with the JSON
	BinaryErr  error
}

// Summarize loads path and, when present, cross-checks the .bin payload against it.
func Summarize(path string) (Summary, error) {
	a, err := Load(path)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		StudentID:  a.StudentID,
		NumSamples: a.NumSamples,
		Dimension:  a.Dimension,
		MinNorm:    math.Inf(1),
		MaxNorm:    math.Inf(-1),
	}

	row := make([]float64, a.Dimension)
	for _, r := range a.Embeddings {
		for j, v := range r {
			row[j] = float64(v)
		}
		n := floats.Norm(row, 2)
		s.MinNorm = math.Min(s.MinNorm, n)
		s.MaxNorm = math.Max(s.MaxNorm, n)
	}

	binPath := strings.TrimSuffix(path, filepath.Ext(path)) + BinExt
	if data, err := os.ReadFile(binPath); err == nil {
		s.BinaryErr = compareBinary(a, data)
		s.Binary = s.BinaryErr == nil
	} else if !os.IsNotExist(err) {
		s.BinaryErr = err
	}

	return s, nil
}

func compareBinary(a *Artifact, data []byte) error {
	rows, err := DecodeBinary(data, a.NumSamples, a.Dimension)
	if err != nil {
		return err
	}

	for i := range rows {
		for j := range rows[i] {
			if rows[i][j] != a.Embeddings[i][j] {
				return fmt.Errorf("%w: binary payload differs from JSON at row %d column %d", ErrInvalid, i, j)
			}
		}
	}
	return nil
}
