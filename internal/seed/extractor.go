package seed

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"

	"github.com/andresmejia3/faceseed/internal/artifact"
	"github.com/andresmejia3/faceseed/internal/faces"
	"github.com/andresmejia3/faceseed/internal/imagefile"
)

// Extractor computes the embedding table of one subject folder.
type Extractor struct {
	detector faces.Detector
	encoder  faces.Encoder
	modes    []faces.Mode

	// Skipped counts images dropped with a warning since the extractor was created.
	Skipped int
}

// NewExtractor returns an extractor that tries the detector modes in order until one of
// them finds a face.
func NewExtractor(d faces.Detector, e faces.Encoder, modes ...faces.Mode) *Extractor {
	if len(modes) == 0 {
		modes = []faces.Mode{faces.ModeHOG, faces.ModeCNN}
	}
	return &Extractor{detector: d, encoder: e, modes: modes}
}

// Images returns the photo files directly inside dir, sorted by name.
func Images(dir string) ([]string, error) {
	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, err
	}
	sort.Sort(dirents)

	var paths []string
	for _, de := range dirents {
		if !imagefile.Accepted(de.Name()) {
			continue
		}
		if isDir, err := de.IsDirOrSymlinkToDir(); err != nil || isDir {
			continue
		}
		paths = append(paths, filepath.Join(dir, de.Name()))
	}

	return paths, nil
}

// Extract returns the subject's descriptors stacked in scan order together with the
// parallel list of source file names. Photos without a usable face are skipped with a
// warning; a subject without any usable photo fails with ErrNoEmbeddings.
func (x *Extractor) Extract(ctx context.Context, s Subject) (*artifact.Table, []string, error) {
	paths, err := Images(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", s.ID, err)
	}

	table := &artifact.Table{}
	var sources []string

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		d, err := x.embed(ctx, path)
		switch {
		case err == nil:
			table.Append(d)
			sources = append(sources, filepath.Base(path))
		case errors.Is(err, faces.ErrNoFace), errors.Is(err, faces.ErrUnreadable):
			x.Skipped++
			log.Warnf("seed: %s in %s", err, path)
		default:
			return nil, nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}

	if table.Rows() == 0 {
		return nil, nil, fmt.Errorf("%w for %s, ensure images contain clear faces", ErrNoEmbeddings, s.ID)
	}

	return table, sources, nil
}

// embed returns the descriptor of the first face found in the image.
func (x *Extractor) embed(ctx context.Context, path string) (faces.Descriptor, error) {
	var none faces.Descriptor

	if err := imagefile.Check(path); err != nil {
		return none, fmt.Errorf("%w: %v", faces.ErrUnreadable, err)
	}

	var boxes []faces.Box
	for _, mode := range x.modes {
		found, err := x.detector.Locate(ctx, path, mode)
		if err != nil {
			return none, err
		}
		if len(found) > 0 {
			boxes = found
			break
		}
		log.Debugf("seed: %s found no face in %s", mode, filepath.Base(path))
	}

	if len(boxes) == 0 {
		return none, faces.ErrNoFace
	}

	vecs, err := x.encoder.Encode(ctx, path, boxes)
	if err != nil {
		return none, err
	}
	if len(vecs) == 0 {
		return none, fmt.Errorf("%w (encoding failed)", faces.ErrNoFace)
	}

	return faces.NewDescriptor(vecs[0])
}
