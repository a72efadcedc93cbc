// Package imageio turns uploaded bytes into pixel grids and prepares those
// grids for the OCR engines.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"path/filepath"
	"strings"
)

// Format is a supported image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// DefaultMaxPixels bounds width*height of an accepted upload.
const DefaultMaxPixels = 40_000_000

// ErrUnsupportedType is wrapped by DecodeError for uploads whose declared or
// detected type is not PNG or JPEG.
var ErrUnsupportedType = errors.New("unsupported image type")

// DecodeError reports a malformed or unsupported upload.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode image: " + e.Reason
	}
	return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoded is an uploaded image after decoding.
type Decoded struct {
	Image  image.Image
	Format Format
	Width  int
	Height int
}

// Decoder decodes PNG and JPEG uploads.
type Decoder struct {
	maxPixels int
}

// NewDecoder returns a decoder rejecting images above maxPixels.
// A non-positive limit selects DefaultMaxPixels.
func NewDecoder(maxPixels int) *Decoder {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Decoder{maxPixels: maxPixels}
}

// ResolveType maps a declared type (a filename or a MIME type) to a Format.
// An empty declaration resolves to the empty Format and no error.
func ResolveType(declared string) (Format, error) {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return "", nil
	}

	if strings.Contains(declared, "/") && !strings.Contains(declared, ".") {
		mediaType, _, err := mime.ParseMediaType(declared)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedType, declared)
		}
		switch strings.ToLower(mediaType) {
		case "image/png":
			return FormatPNG, nil
		case "image/jpeg", "image/jpg", "image/pjpeg":
			return FormatJPEG, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
	}

	ext := strings.ToLower(filepath.Ext(declared))
	if ext == "" {
		ext = "." + strings.ToLower(declared)
	}
	switch ext {
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
}

// Decode validates the declared type, checks the header, and decodes the
// pixels. Every failure is a *DecodeError.
func (d *Decoder) Decode(data []byte, declaredType string) (*Decoded, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty upload"}
	}
	if _, err := ResolveType(declaredType); err != nil {
		return nil, &DecodeError{Reason: "unsupported declared type", Err: err}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "malformed image", Err: err}
	}
	detected := Format(format)
	if detected != FormatPNG && detected != FormatJPEG {
		return nil, &DecodeError{
			Reason: "unsupported content",
			Err:    fmt.Errorf("%w: %s", ErrUnsupportedType, format),
		}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("empty image %dx%d", cfg.Width, cfg.Height)}
	}
	if cfg.Width*cfg.Height > d.maxPixels {
		return nil, &DecodeError{
			Reason: fmt.Sprintf("image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, d.maxPixels),
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "malformed image", Err: err}
	}

	b := img.Bounds()
	return &Decoded{
		Image:  img,
		Format: detected,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}
