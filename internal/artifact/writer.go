package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize/english"

	"github.com/andresmejia3/faceseed/internal/event"
)

var log = event.Log

const (
	// JSONExt is the metadata file suffix.
	JSONExt = ".json"
	// BinExt is the raw float32 payload suffix.
	BinExt = ".bin"
)

// Writer serializes artifacts into one output directory.
type Writer struct {
	Dir    string
	Binary bool
}

// NewWriter returns a writer for dir. With binary set, a <id>.bin payload is written
// next to every <id>.json.
func NewWriter(dir string, binary bool) *Writer {
	return &Writer{Dir: dir, Binary: binary}
}

// Write creates the output directory if needed and replaces the subject's files.
// It returns the paths written.
func (w *Writer) Write(a *Artifact) ([]string, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", a.StudentID, err)
	}

	// the payload goes first so a failure never leaves metadata without its companion
	var written []string
	if w.Binary {
		binPath := filepath.Join(w.Dir, a.StudentID+BinExt)
		if err := writeFileAtomic(binPath, EncodeBinary(a.Embeddings)); err != nil {
			return nil, err
		}
		written = append(written, binPath)
	}

	jsonPath := filepath.Join(w.Dir, a.StudentID+JSONExt)
	if err := writeFileAtomic(jsonPath, data); err != nil {
		for _, p := range written {
			os.Remove(p)
		}
		return nil, err
	}
	written = append([]string{jsonPath}, written...)

	log.Infof("artifact: saved embeddings for %s: %s", a.StudentID, english.Plural(a.NumSamples, "sample", "samples"))

	return written, nil
}

// EncodeBinary lays out rows as consecutive little-endian float32 values, row-major,
// without a header.
func EncodeBinary(rows [][]float32) []byte {
	var buf bytes.Buffer
	for _, row := range rows {
		// bytes.Buffer writes never fail
		_ = binary.Write(&buf, binary.LittleEndian, row)
	}
	return buf.Bytes()
}

// writeFileAtomic replaces path so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Chmod(0644); err != nil {
		cleanup()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}

	return nil
}
