package testutil

import (
	"context"
	"image"
	"sync"
)

// FakeEngine is a scripted OCR engine. Each call returns Fragments and Err.
// When Gate is non-nil the call blocks until Gate is closed or the context
// ends; Started receives once per call before blocking.
type FakeEngine struct {
	EngineName string
	Fragments  []string
	Err        error
	Gate       chan struct{}
	Started    chan struct{}

	mu        sync.Mutex
	calls     int
	languages [][]string
	sizes     []image.Point
}

// NewFakeEngine returns an engine answering with fragments.
func NewFakeEngine(fragments ...string) *FakeEngine {
	return &FakeEngine{EngineName: "fake", Fragments: fragments}
}

func (f *FakeEngine) Name() string {
	if f.EngineName == "" {
		return "fake"
	}
	return f.EngineName
}

func (f *FakeEngine) Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.languages = append(f.languages, append([]string(nil), languages...))
	f.sizes = append(f.sizes, img.Bounds().Size())
	fragments, err, gate, started := f.Fragments, f.Err, f.Gate, f.Started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return append([]string(nil), fragments...), nil
}

// Set replaces the scripted answer.
func (f *FakeEngine) Set(fragments []string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fragments = fragments
	f.Err = err
}

// Calls returns how many times Recognize ran.
func (f *FakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastLanguages returns the hints of the most recent call.
func (f *FakeEngine) LastLanguages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.languages) == 0 {
		return nil
	}
	return f.languages[len(f.languages)-1]
}

// LastSize returns the image size seen by the most recent call.
func (f *FakeEngine) LastSize() image.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sizes) == 0 {
		return image.Point{}
	}
	return f.sizes[len(f.sizes)-1]
}
