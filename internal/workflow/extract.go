package workflow

import (
	"context"
	"image"

	"github.com/MeKo-Tech/scanocr/internal/engine"
)

// ExtractText runs eng on img and joins the recognized fragments with sep.
// It has no side effects beyond the engine call and never retries. Every
// failure is reported as a *RecognitionError; an image without text
// returns the empty string.
func ExtractText(ctx context.Context, eng engine.Engine, img image.Image, languages []string, sep Separator) (string, []string, error) {
	name := eng.Name()
	if img == nil || img.Bounds().Empty() {
		return "", nil, &RecognitionError{Engine: name, Err: ErrEmptyImage}
	}
	if err := ctx.Err(); err != nil {
		return "", nil, &RecognitionError{Engine: name, Err: err}
	}

	fragments, err := eng.Recognize(ctx, img, languages)
	if err != nil {
		return "", nil, &RecognitionError{Engine: name, Err: err}
	}

	text, cleaned, err := JoinFragments(fragments, sep)
	if err != nil {
		return "", nil, &RecognitionError{Engine: name, Err: err}
	}
	return text, cleaned, nil
}
