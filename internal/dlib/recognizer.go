//go:build dlib

package dlib

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	face "github.com/Kagami/go-face"

	"github.com/andresmejia3/faceseed/internal/faces"
	"github.com/andresmejia3/faceseed/internal/imagefile"
)

// Recognizer runs detection and encoding in one dlib pass. go-face cannot encode a given box,
// so Locate keeps the faces of the last photo and Encode looks the boxes up.
type Recognizer struct {
	rec *face.Recognizer

	mu    sync.Mutex
	path  string
	found []face.Face
}

// New loads the dlib models from dir.
func New(dir string) (*Recognizer, error) {
	rec, err := face.NewRecognizer(dir)
	if err != nil {
		return nil, fmt.Errorf("dlib: loading models from %s: %w", dir, err)
	}

	log.Debugf("dlib: models loaded from %s", dir)

	return &Recognizer{rec: rec}, nil
}

// Locate implements faces.Detector.
func (r *Recognizer) Locate(ctx context.Context, path string, mode faces.Mode) ([]faces.Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// dlib only decodes JPEG
	data, err := imagefile.JPEG(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faces.ErrUnreadable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var found []face.Face
	switch mode {
	case faces.ModeCNN:
		found, err = r.rec.RecognizeCNN(data)
	default:
		found, err = r.rec.Recognize(data)
	}
	if err != nil {
		if _, ok := err.(face.ImageLoadError); ok {
			return nil, fmt.Errorf("%w: %v", faces.ErrUnreadable, err)
		}
		return nil, fmt.Errorf("dlib: %s: %w", filepath.Base(path), err)
	}

	r.path = path
	r.found = found

	return boxes(found), nil
}

// Encode implements faces.Encoder. Boxes must come from the preceding Locate of the same path.
func (r *Recognizer) Encode(ctx context.Context, path string, want []faces.Box) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path != path {
		return nil, fmt.Errorf("dlib: %s was not located before encoding", filepath.Base(path))
	}

	have := boxes(r.found)
	vecs := make([][]float32, 0, len(want))
	for _, b := range want {
		i := match(have, b)
		if i < 0 {
			continue
		}
		d := r.found[i].Descriptor
		vecs = append(vecs, d[:])
	}

	return vecs, nil
}

// Close releases the dlib models.
func (r *Recognizer) Close() error {
	r.rec.Close()
	return nil
}

func boxes(found []face.Face) []faces.Box {
	out := make([]faces.Box, len(found))
	for i, f := range found {
		rect := f.Rectangle
		out[i] = faces.Box{Top: rect.Min.Y, Right: rect.Max.X, Bottom: rect.Max.Y, Left: rect.Min.X}
	}
	return out
}
