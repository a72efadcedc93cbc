// Package workflow implements the upload, extract and reset cycle of a
// single OCR session.
package workflow

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/scanocr/internal/engine"
	"github.com/MeKo-Tech/scanocr/internal/imageio"
)

// Options configures a Session. The zero value is usable.
type Options struct {
	Separator Separator
	Languages []string
	Prepare   imageio.PrepareOptions
	Logger    *slog.Logger
}

// UploadedImage is the image currently attached to a session.
type UploadedImage struct {
	Data         []byte
	DeclaredType string
	Format       imageio.Format
	Width        int
	Height       int
	Pixels       image.Image
	UploadedAt   time.Time
}

// Result is a completed extraction for the current image.
type Result struct {
	Fragments   []string
	Text        string
	Engine      string
	Duration    time.Duration
	CompletedAt time.Time
}

// Session holds the workflow state of one user. All methods are safe for
// concurrent use; the lock is released while the engine runs so a second
// mutating call during extraction observes Processing and gets ErrBusy.
type Session struct {
	id      string
	decoder *imageio.Decoder
	engine  engine.Engine
	opts    Options
	log     *slog.Logger

	mu        sync.Mutex
	state     State
	image     *UploadedImage
	result    *Result
	lastErr   string
	updatedAt time.Time
}

// New returns an Idle session.
func New(id string, dec *imageio.Decoder, eng engine.Engine, opts Options) *Session {
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	if len(opts.Languages) == 0 {
		opts.Languages = engine.DefaultLanguages
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if dec == nil {
		dec = imageio.NewDecoder(0)
	}
	return &Session{
		id:        id,
		decoder:   dec,
		engine:    eng,
		opts:      opts,
		log:       opts.Logger.With("session", id),
		state:     Idle,
		updatedAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether an extraction is in flight.
func (s *Session) Busy() bool { return s.State() == Processing }

// Upload decodes data and makes it the current image, discarding any
// previous image and result. On a DecodeError the session is left exactly
// as it was.
func (s *Session) Upload(data []byte, declaredType string) (Snapshot, error) {
	s.mu.Lock()
	if s.state == Processing {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrBusy
	}
	s.mu.Unlock()

	decoded, decErr := s.decoder.Decode(data, declaredType)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Processing {
		return s.snapshotLocked(), ErrBusy
	}
	if decErr != nil {
		s.lastErr = decErr.Error()
		s.log.Debug("upload rejected", "state", s.state, "error", decErr)
		return s.snapshotLocked(), decErr
	}

	s.result = nil
	s.image = &UploadedImage{
		Data:         data,
		DeclaredType: declaredType,
		Format:       decoded.Format,
		Width:        decoded.Width,
		Height:       decoded.Height,
		Pixels:       decoded.Image,
		UploadedAt:   time.Now(),
	}
	s.lastErr = ""
	s.transitionLocked(ImageLoaded)
	return s.snapshotLocked(), nil
}

// Extract runs the engine on the current image. From ResultReady the old
// result is discarded and the engine runs again. A RecognitionError puts the
// session back in ImageLoaded with no result.
func (s *Session) Extract(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	switch s.state {
	case Processing:
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrBusy
	case Idle:
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrNoImage
	}
	pixels := s.image.Pixels
	s.result = nil
	s.lastErr = ""
	s.transitionLocked(Processing)
	s.mu.Unlock()

	start := time.Now()
	prepared := pixels
	if pixels != nil {
		prepared = imageio.Prepare(pixels, s.opts.Prepare)
	}
	text, fragments, err := ExtractText(ctx, s.engine, prepared, s.opts.Languages, s.opts.Separator)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err.Error()
		s.log.Warn("extraction failed", "engine", s.engine.Name(), "duration", elapsed, "error", err)
		s.transitionLocked(ImageLoaded)
		return s.snapshotLocked(), err
	}

	s.result = &Result{
		Fragments:   fragments,
		Text:        text,
		Engine:      s.engine.Name(),
		Duration:    elapsed,
		CompletedAt: time.Now(),
	}
	s.log.Debug("extraction complete", "engine", s.engine.Name(), "fragments", len(fragments), "duration", elapsed)
	s.transitionLocked(ResultReady)
	return s.snapshotLocked(), nil
}

// Reset discards the image and result. It is a no-op from Idle.
func (s *Session) Reset() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Processing {
		return s.snapshotLocked(), ErrBusy
	}
	s.image = nil
	s.result = nil
	s.lastErr = ""
	s.transitionLocked(Idle)
	return s.snapshotLocked(), nil
}

// Artifact returns the current result as a download. It fails with a
// ClipboardError when no result is ready and never changes state.
func (s *Session) Artifact() (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ResultReady || s.result == nil {
		return Artifact{}, &ClipboardError{Reason: "no result in state " + s.state.String()}
	}
	return NewArtifact(s.result.Text), nil
}

// CurrentImage returns the decoded current image, or nil when Idle.
func (s *Session) CurrentImage() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == nil {
		return nil
	}
	return s.image.Pixels
}

func (s *Session) transitionLocked(to State) {
	from := s.state
	s.state = to
	s.updatedAt = time.Now()
	s.log.Debug("workflow transition", "from", from.String(), "to", to.String())
}
