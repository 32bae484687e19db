//go:build !dlib

package dlib

import (
	"context"

	"github.com/andresmejia3/faceseed/internal/faces"
)

// Recognizer is a placeholder when dlib support is not compiled in.
type Recognizer struct{}

// New always fails with ErrUnavailable.
func New(dir string) (*Recognizer, error) {
	log.Debugf("dlib: cannot load models from %s, %s", dir, ErrUnavailable)
	return nil, ErrUnavailable
}

func (r *Recognizer) Locate(context.Context, string, faces.Mode) ([]faces.Box, error) {
	return nil, ErrUnavailable
}

func (r *Recognizer) Encode(context.Context, string, []faces.Box) ([][]float32, error) {
	return nil, ErrUnavailable
}

func (r *Recognizer) Close() error {
	return nil
}
