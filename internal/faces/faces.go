/*
Package faces defines the boundary to the face detection and embedding capability.

The pipeline never detects or encodes faces itself. It asks a Detector for face boxes using one
of several detector modes and hands the boxes to an Encoder that returns one descriptor per
box. Backends live in internal/worker (Python face_recognition subprocess) and internal/dlib
(in-process go-face).
*/
package faces

import (
	"context"
	"errors"
	"fmt"
)

// Dim is the number of components of a face descriptor.
const Dim = 128

var (
	// ErrNoFace means no detector mode found a face in the image.
	ErrNoFace = errors.New("no face detected")
	// ErrUnreadable means the image could not be opened or decoded.
	ErrUnreadable = errors.New("image unreadable")
	// ErrDimension means the encoder returned a vector of the wrong length.
	ErrDimension = errors.New("unexpected descriptor dimension")
)

// Mode names a detector strategy.
type Mode string

const (
	// ModeHOG is the fast histogram-of-oriented-gradients detector.
	ModeHOG Mode = "hog"
	// ModeCNN is the slower, more accurate convolutional detector.
	ModeCNN Mode = "cnn"
)

// ParseModes converts configured mode names, keeping their order.
func ParseModes(names []string) ([]Mode, error) {
	modes := make([]Mode, 0, len(names))
	for _, n := range names {
		switch m := Mode(n); m {
		case ModeHOG, ModeCNN:
			modes = append(modes, m)
		default:
			return nil, fmt.Errorf("unknown detector mode %q", n)
		}
	}
	if len(modes) == 0 {
		return nil, errors.New("no detector modes configured")
	}
	return modes, nil
}

// Box is a face bounding box in pixel coordinates.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Descriptor is a fixed length face embedding.
type Descriptor [Dim]float32

// NewDescriptor coerces a vector returned by an Encoder into a Descriptor.
func NewDescriptor(v []float32) (Descriptor, error) {
	var d Descriptor
	if len(v) != Dim {
		return d, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(v), Dim)
	}
	copy(d[:], v)
	return d, nil
}

// Slice returns the components as a new slice.
func (d Descriptor) Slice() []float32 {
	out := make([]float32, Dim)
	copy(out, d[:])
	return out
}

// Detector locates faces in an image file.
type Detector interface {
	Locate(ctx context.Context, path string, mode Mode) ([]Box, error)
}

// Encoder computes one embedding per box, in box order. It may return fewer vectors than
// boxes when encoding fails.
type Encoder interface {
	Encode(ctx context.Context, path string, boxes []Box) ([][]float32, error)
}

// Provider is a backend offering both halves of the capability.
type Provider interface {
	Detector
	Encoder
	Close() error
}
