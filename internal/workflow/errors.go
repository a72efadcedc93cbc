package workflow

import (
	"errors"
	"fmt"
)

// ErrBusy is returned for any mutating action issued while an extraction is
// in flight. The rejected action has no effect.
var ErrBusy = errors.New("extraction in progress")

// ErrNoImage is returned by Extract when nothing has been uploaded.
var ErrNoImage = errors.New("no image uploaded")

// ErrEmptyImage is wrapped in a RecognitionError when the pixel grid has no
// area.
var ErrEmptyImage = errors.New("image has zero width or height")

// RecognitionError reports that the OCR engine failed, timed out, or
// produced output that cannot be used. Finding no text is not an error.
type RecognitionError struct {
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string {
	if e.Engine == "" {
		return fmt.Sprintf("recognition failed: %v", e.Err)
	}
	return fmt.Sprintf("recognition failed (%s): %v", e.Engine, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// ClipboardError reports that the current result could not be offered for
// copy or download. It never affects workflow state.
type ClipboardError struct {
	Reason string
}

func (e *ClipboardError) Error() string {
	return "copy result unavailable: " + e.Reason
}
