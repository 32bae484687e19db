package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/faceseed/internal/faces"
	"github.com/andresmejia3/faceseed/internal/faces/facestest"
)

func TestImages_FilterAndOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.jpg", "c.jpeg", "d.JPEG"} {
		facestest.WriteImage(t, dir, name)
	}
	facestest.WriteFile(t, dir, ".gitkeep", nil)
	facestest.WriteFile(t, dir, "notes.txt", []byte("hi"))
	facestest.WriteFile(t, dir, "e.gif", []byte("GIF89a"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0755))
	facestest.WriteImage(t, filepath.Join(dir, "nested.jpg"), "deep.jpg")

	paths, err := Images(dir)
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"a.jpg", "b.PNG", "c.jpeg", "d.JPEG"}, names)
}

func TestExtract_StacksInScanOrder(t *testing.T) {
	dir := facestest.Subject(t, t.TempDir(), "s1", "02.jpg", "01.png", "03.jpeg")
	fake := facestest.New()
	x := NewExtractor(fake, fake)

	table, sources, err := x.Extract(context.Background(), Subject{ID: "s1", Path: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"01.png", "02.jpg", "03.jpeg"}, sources)
	require.Equal(t, 3, table.Rows())
	assert.Equal(t, faces.Dim, table.Dim())

	rows := table.Nested()
	for i, name := range sources {
		assert.Equal(t, facestest.Vector(name, 0, faces.Dim), rows[i], "row %d comes from %s", i, name)
	}
}

func TestExtract_FallsBackToCNN(t *testing.T) {
	dir := facestest.Subject(t, t.TempDir(), "s1", "a_cnnonly.jpg", "b.jpg")
	fake := facestest.New()
	x := NewExtractor(fake, fake, faces.ModeHOG, faces.ModeCNN)

	_, sources, err := x.Extract(context.Background(), Subject{ID: "s1", Path: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"a_cnnonly.jpg", "b.jpg"}, sources)
	assert.Equal(t, 2, fake.Count("locate", "a_cnnonly.jpg"), "hog then cnn")
	assert.Equal(t, 1, fake.Count("locate", "b.jpg"), "hog hit, no fallback")
	assert.Equal(t, faces.ModeHOG, fake.Calls[0].Mode)
	assert.Equal(t, faces.ModeCNN, fake.Calls[1].Mode)
}

func TestExtract_HOGOnlySkipsCNNFaces(t *testing.T) {
	dir := facestest.Subject(t, t.TempDir(), "s1", "a_cnnonly.jpg", "b.jpg")
	fake := facestest.New()
	x := NewExtractor(fake, fake, faces.ModeHOG)

	_, sources, err := x.Extract(context.Background(), Subject{ID: "s1", Path: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.jpg"}, sources)
	assert.Equal(t, 1, x.Skipped)
}

func TestExtract_FirstFaceOnly(t *testing.T) {
	dir := facestest.Subject(t, t.TempDir(), "s1", "group_multi.jpg")
	fake := facestest.New()
	x := NewExtractor(fake, fake)

	table, _, err := x.Extract(context.Background(), Subject{ID: "s1", Path: dir})
	require.NoError(t, err)
	require.Equal(t, 1, table.Rows())

	assert.Equal(t, facestest.Vector("group_multi.jpg", 0, faces.Dim), table.Nested()[0])
}

func TestExtract_SkipsWithWarning(t *testing.T) {
	hook := captureLog(t)

	root := t.TempDir()
	dir := facestest.Subject(t, root, "s1", "a.jpg", "b_noface.jpg", "c_noenc.png", "d_broken.jpg")
	facestest.WriteFile(t, dir, "e.jpg", []byte("this is not an image"))
	facestest.WriteFile(t, dir, "notes.txt", []byte("ignored"))

	fake := facestest.New()
	x := NewExtractor(fake, fake)

	table, sources, err := x.Extract(context.Background(), Subject{ID: "s1", Path: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.jpg"}, sources)
	assert.Equal(t, 1, table.Rows())
	assert.Equal(t, 4, x.Skipped)

	warnings := messages(hook, logrus.WarnLevel, "seed:")
	assert.Len(t, warnings, 4)
	assert.Len(t, messages(hook, logrus.WarnLevel, "b_noface.jpg"), 1)
	assert.Len(t, messages(hook, logrus.WarnLevel, "e.jpg"), 1)

	assert.Zero(t, fake.Count("locate", "e.jpg"), "unreadable content never reaches the detector")
	assert.Zero(t, fake.Count("locate", "notes.txt"), "non-image files are not attempted")
	assert.Equal(t, 2, fake.Count("locate", "b_noface.jpg"), "both modes tried")
	assert.Equal(t, 1, fake.Count("locate", "d_broken.jpg"), "unreadable stops the fallback")
}

func TestExtract_NoEmbeddings(t *testing.T) {
	dir := facestest.Subject(t, t.TempDir(), "C", "x_noface.jpg", "y_noface.png")
	fake := facestest.New()

	_, _, err := NewExtractor(fake, fake).Extract(context.Background(), Subject{ID: "C", Path: dir})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoEmbeddings))
	assert.Contains(t, err.Error(), "C")
}

func TestExtract_EmptyFolder(t *testing.T) {
	dir := facestest.Subject(t, t.TempDir(), "empty")
	fake := facestest.New()

	_, _, err := NewExtractor(fake, fake).Extract(context.Background(), Subject{ID: "empty", Path: dir})
	assert.True(t, errors.Is(err, ErrNoEmbeddings))
}

func TestExtract_WrongDimensionFailsSubject(t *testing.T) {
	dir := facestest.Subject(t, t.TempDir(), "s1", "a.jpg", "b_short.jpg")
	fake := facestest.New()

	_, _, err := NewExtractor(fake, fake).Extract(context.Background(), Subject{ID: "s1", Path: dir})
	assert.True(t, errors.Is(err, faces.ErrDimension))
}

type failingDetector struct{ err error }

func (f failingDetector) Locate(context.Context, string, faces.Mode) ([]faces.Box, error) {
	return nil, f.err
}

func TestExtract_CapabilityErrorFailsSubject(t *testing.T) {
	dir := facestest.Subject(t, t.TempDir(), "s1", "a.jpg", "b.jpg")
	boom := errors.New("worker pipe closed")

	_, _, err := NewExtractor(failingDetector{err: boom}, facestest.New()).
		Extract(context.Background(), Subject{ID: "s1", Path: dir})
	assert.True(t, errors.Is(err, boom))
}

func TestExtract_Cancelled(t *testing.T) {
	dir := facestest.Subject(t, t.TempDir(), "s1", "a.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := facestest.New()
	_, _, err := NewExtractor(fake, fake).Extract(ctx, Subject{ID: "s1", Path: dir})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, fake.Calls)
}

func TestExtract_MissingFolder(t *testing.T) {
	fake := facestest.New()
	_, _, err := NewExtractor(fake, fake).Extract(context.Background(), Subject{ID: "gone", Path: filepath.Join(t.TempDir(), "gone")})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoEmbeddings))
}
