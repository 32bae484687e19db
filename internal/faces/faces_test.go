package faces

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDescriptor(t *testing.T) {
	v := make([]float32, Dim)
	v[0], v[Dim-1] = 0.25, -1

	d, err := NewDescriptor(v)
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), d[0])
	assert.Equal(t, float32(-1), d[Dim-1])

	// the descriptor must not alias the input
	v[0] = 9
	assert.Equal(t, float32(0.25), d[0])
	assert.Equal(t, v[1:], d.Slice()[1:])
}

func TestNewDescriptor_WrongLength(t *testing.T) {
	for _, n := range []int{0, 127, 129, 512} {
		_, err := NewDescriptor(make([]float32, n))
		if !errors.Is(err, ErrDimension) {
			t.Errorf("NewDescriptor(len %d) error = %v, want ErrDimension", n, err)
		}
	}
}

func TestParseModes(t *testing.T) {
	modes, err := ParseModes([]string{"hog", "cnn"})
	require.NoError(t, err)
	assert.Equal(t, []Mode{ModeHOG, ModeCNN}, modes)

	_, err = ParseModes([]string{"hog", "haar"})
	assert.Error(t, err)

	_, err = ParseModes(nil)
	assert.Error(t, err)
}
