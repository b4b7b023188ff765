// Package imageio reads and writes the raster images a batch works on.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP
)

// Image is a decoded raster together with the path it came from.
type Image struct {
	Path string
	Img  image.Image
}

// Bounds returns the pixel bounds of the raster.
func (i Image) Bounds() image.Rectangle {
	if i.Img == nil {
		return image.Rectangle{}
	}
	return i.Img.Bounds()
}

// DecodeError is returned when an image cannot be read, decoded or written.
type DecodeError struct {
	Path      string
	Operation string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("image %s error for %s: %v", e.Operation, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode opens and decodes the image at path. The format is detected from
// the content, not the extension. EXIF orientation is applied.
func Decode(path string) (Image, error) {
	if path == "" {
		return Image{}, &DecodeError{Path: path, Operation: "load", Err: errors.New("empty path")}
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, &DecodeError{Path: path, Operation: "decode", Err: err}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Image{}, &DecodeError{Path: path, Operation: "decode", Err: errors.New("image has no pixels")}
	}
	return Image{Path: path, Img: img}, nil
}

// Save encodes img to path, choosing the format from the extension and
// creating parent directories as needed. Unknown extensions are written
// as PNG.
func Save(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &DecodeError{Path: path, Operation: "save", Err: err}
		}
	}
	if _, err := imaging.FormatFromFilename(path); err != nil {
		f, err := os.Create(path) //nolint:gosec // G304: output path derived from the run configuration
		if err != nil {
			return &DecodeError{Path: path, Operation: "save", Err: err}
		}
		if err := png.Encode(f, img); err != nil {
			_ = f.Close()
			return &DecodeError{Path: path, Operation: "save", Err: err}
		}
		if err := f.Close(); err != nil {
			return &DecodeError{Path: path, Operation: "save", Err: err}
		}
		return nil
	}
	if err := imaging.Save(img, path); err != nil {
		return &DecodeError{Path: path, Operation: "save", Err: err}
	}
	return nil
}

// EncodePNG returns the PNG encoding of img.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
