// Package facestest provides a deterministic face capability and image fixtures for tests.
package facestest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/andresmejia3/faceseed/internal/faces"
)

// File name markers understood by Provider.
const (
	MarkNoFace  = "noface"  // no mode finds a face
	MarkCNNOnly = "cnnonly" // only the cnn mode finds a face
	MarkMulti   = "multi"   // two faces, the larger one second
	MarkNoEnc   = "noenc"   // a face is found but encoding yields nothing
	MarkBroken  = "broken"  // Locate reports the image unreadable
	MarkShort   = "short"   // encoder returns a vector of the wrong length
)

// Call records one capability invocation.
type Call struct {
	Op   string
	Name string
	Mode faces.Mode
}

// Provider decides what it "sees" from markers in the file name and derives descriptors
// from a hash of the name, so results are stable across runs.
type Provider struct {
	mu     sync.Mutex
	Calls  []Call
	Closed bool
}

// New returns an empty fake provider.
func New() *Provider {
	return &Provider{}
}

// Locate implements faces.Detector.
func (p *Provider) Locate(ctx context.Context, path string, mode faces.Mode) ([]faces.Box, error) {
	name := filepath.Base(path)
	p.record(Call{Op: "locate", Name: name, Mode: mode})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case strings.Contains(name, MarkBroken):
		return nil, faces.ErrUnreadable
	case strings.Contains(name, MarkNoFace):
		return nil, nil
	case strings.Contains(name, MarkCNNOnly) && mode != faces.ModeCNN:
		return nil, nil
	case strings.Contains(name, MarkMulti):
		return []faces.Box{
			{Top: 0, Right: 10, Bottom: 10, Left: 0},
			{Top: 0, Right: 40, Bottom: 40, Left: 0},
		}, nil
	}

	return []faces.Box{{Top: 4, Right: 20, Bottom: 20, Left: 4}}, nil
}

// Encode implements faces.Encoder.
func (p *Provider) Encode(ctx context.Context, path string, boxes []faces.Box) ([][]float32, error) {
	name := filepath.Base(path)
	p.record(Call{Op: "encode", Name: name})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.Contains(name, MarkNoEnc) {
		return nil, nil
	}

	dim := faces.Dim
	if strings.Contains(name, MarkShort) {
		dim = faces.Dim / 2
	}

	out := make([][]float32, len(boxes))
	for i := range boxes {
		out[i] = Vector(name, i, dim)
	}
	return out, nil
}

// Close implements faces.Provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Count returns how many calls of op were made for name.
func (p *Provider) Count(op, name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		if c.Op == op && c.Name == name {
			n++
		}
	}
	return n
}

func (p *Provider) record(c Call) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, c)
}

// Vector returns the deterministic embedding for face index i of the named file.
func Vector(name string, i, dim int) []float32 {
	seed := sha256.Sum256([]byte(name))
	base := binary.LittleEndian.Uint32(seed[:4])

	v := make([]float32, dim)
	for j := range v {
		v[j] = float32((base+uint32(j*31+i*7))%1000) / 1000
	}
	return v
}

// WriteImage writes a small valid PNG to dir/name, whatever the extension says,
// and returns its path.
func WriteImage(t testing.TB, dir, name string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

// WriteFile writes arbitrary bytes to dir/name and returns its path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Subject creates dir/id and fills it with valid images with the given names.
func Subject(t testing.TB, dir, id string, images ...string) string {
	t.Helper()

	sub := filepath.Join(dir, id)
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range images {
		WriteImage(t, sub, name)
	}
	return sub
}
