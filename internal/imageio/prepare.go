package imageio

import (
	"bytes"
	"errors"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// PrepareOptions controls the conversion applied before an image reaches
// an OCR engine.
type PrepareOptions struct {
	// MaxDimension caps the longest side; 0 disables downscaling.
	MaxDimension int
	// Grayscale drops color information.
	Grayscale bool
}

// Prepare returns img downscaled and optionally desaturated per opts.
// The input is never modified.
func Prepare(img image.Image, opts PrepareOptions) image.Image {
	if img == nil {
		return nil
	}
	out := img
	b := img.Bounds()
	if opts.MaxDimension > 0 && (b.Dx() > opts.MaxDimension || b.Dy() > opts.MaxDimension) {
		out = imaging.Fit(out, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
	}
	if opts.Grayscale {
		out = imaging.Grayscale(out)
	}
	return out
}

// DefaultPreviewSize bounds the longest side of a preview thumbnail.
const DefaultPreviewSize = 640

// WritePreview writes a PNG thumbnail no larger than maxSide on either side.
// Smaller images are written at their original size.
func WritePreview(w io.Writer, img image.Image, maxSide int) error {
	if img == nil {
		return errors.New("no image")
	}
	if maxSide <= 0 {
		maxSide = DefaultPreviewSize
	}
	return imaging.Encode(w, imaging.Fit(img, maxSide, maxSide, imaging.Box), imaging.PNG)
}

// EncodePNG serializes img for engines that take encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("no image")
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
