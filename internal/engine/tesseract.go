//go:build tesseract

package engine

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/otiai10/gosseract/v2"
)

// TesseractAvailable reports whether this binary links the tesseract backend.
const TesseractAvailable = true

// Tesseract runs the local tesseract library through gosseract. A fresh
// client is created per call; gosseract clients are not safe to share.
type Tesseract struct {
	cfg TesseractConfig
}

func newTesseract(cfg TesseractConfig) (Engine, error) {
	return &Tesseract{cfg: cfg}, nil
}

func (t *Tesseract) Name() string { return NameTesseract }

// Recognize returns one fragment per detected text line.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := imageio.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	codes, err := TesseractLanguages(languages)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if len(codes) > 0 {
		if err := client.SetLanguage(codes...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if t.cfg.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(t.cfg.PageSegMode)); err != nil {
			return nil, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	fragments := make([]string, 0, len(boxes))
	for _, b := range boxes {
		fragments = append(fragments, b.Word)
	}
	return fragments, nil
}
