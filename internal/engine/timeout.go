package engine

import (
	"context"
	"fmt"
	"image"
	"time"
)

type timeoutEngine struct {
	inner   Engine
	timeout time.Duration
}

// WithTimeout bounds every Recognize call on e. The call returns once the
// deadline passes even if the backend ignores context cancellation.
func WithTimeout(e Engine, d time.Duration) Engine {
	return &timeoutEngine{inner: e, timeout: d}
}

func (t *timeoutEngine) Name() string { return t.inner.Name() }

func (t *timeoutEngine) Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		fragments []string
		err       error
	}
	done := make(chan result, 1)
	go func() {
		f, err := t.inner.Recognize(ctx, img, languages)
		done <- result{fragments: f, err: err}
	}()

	select {
	case r := <-done:
		return r.fragments, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", t.inner.Name(), ctx.Err())
	}
}

func (t *timeoutEngine) Close() error { return Close(t.inner) }
