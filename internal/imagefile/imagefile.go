// Package imagefile decides which files are source photos and checks their content.
package imagefile

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/h2non/filetype/types"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Extensions lists the accepted photo suffixes, lower case.
var Extensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Decodable lists the content types accepted behind a photo extension. A .jpg holding a
// WebP or BMP still opens in the face backends, so only the content is checked.
var Decodable = map[types.Type]bool{
	matchers.TypeJpeg: true,
	matchers.TypePng:  true,
	matchers.TypeGif:  true,
	matchers.TypeBmp:  true,
	matchers.TypeTiff: true,
	matchers.TypeWebp: true,
}

// headerSize is the number of bytes filetype needs to match any known type.
const headerSize = 262

// Accepted reports whether the file name has a photo extension (case-insensitive).
func Accepted(name string) bool {
	return Extensions[strings.ToLower(filepath.Ext(name))]
}

// Kind sniffs the file header and returns the detected type.
func Kind(path string) (types.Type, error) {
	f, err := os.Open(path)
	if err != nil {
		return filetype.Unknown, err
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return filetype.Unknown, err
	}

	return filetype.Match(head[:n])
}

// Check returns an error unless the file content is a decodable image.
func Check(path string) error {
	kind, err := Kind(path)
	if err != nil {
		return err
	}

	switch {
	case Decodable[kind]:
		return nil
	case kind == filetype.Unknown:
		return fmt.Errorf("unknown content in %s", filepath.Base(path))
	default:
		return fmt.Errorf("unsupported content %s in %s", kind.MIME.Value, filepath.Base(path))
	}
}

// JPEG returns the file as JPEG bytes, re-encoding any other decodable image.
func JPEG(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	kind, err := filetype.Match(data)
	if err != nil {
		return nil, err
	}

	switch {
	case kind == matchers.TypeJpeg:
		return data, nil
	case Decodable[kind]:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
		}
		return encodeJPEG(img)
	default:
		return nil, fmt.Errorf("unsupported content in %s", filepath.Base(path))
	}
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
