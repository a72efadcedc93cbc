//go:build !tesseract

package engine

import "fmt"

// TesseractAvailable reports whether this binary links the tesseract backend.
const TesseractAvailable = false

// newTesseract reports that this binary was built without cgo tesseract
// bindings. Rebuild with -tags tesseract to enable the backend.
func newTesseract(TesseractConfig) (Engine, error) {
	return nil, fmt.Errorf("%w: tesseract support not compiled in (build with -tags tesseract or pick another engine)", ErrUnavailable)
}
