// Package engine adapts external OCR backends to a single recognize call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"
)

// Engine recognizes text in a decoded image. Implementations return the
// recognized fragments in reading order; an image without text yields an
// empty slice and no error.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error)
}

// Engine names accepted by New.
const (
	NameTesseract = "tesseract"
	NameOpenAI    = "openai"
	NameGemini    = "gemini"
	NameRemote    = "remote"
)

// Names lists every engine New can build.
var Names = []string{NameTesseract, NameOpenAI, NameGemini, NameRemote}

// DefaultLanguages is the language hint set used when none is configured.
var DefaultLanguages = []string{"en"}

// ErrUnavailable is returned when an engine cannot be constructed in this
// build or environment.
var ErrUnavailable = errors.New("engine unavailable")

// Config selects and configures an engine.
type Config struct {
	Name      string
	Languages []string
	Timeout   time.Duration
	Tesseract TesseractConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Remote    RemoteConfig
}

// TesseractConfig configures the local tesseract backend.
type TesseractConfig struct {
	PageSegMode int
}

// OpenAIConfig configures a vision chat-completion backend.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// GeminiConfig configures the Gemini vision backend.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// RemoteConfig points at a pogo-compatible OCR HTTP server.
type RemoteConfig struct {
	URL string
}

// New builds the engine named in cfg, wrapped with cfg.Timeout when set.
func New(ctx context.Context, cfg Config) (Engine, error) {
	var (
		e   Engine
		err error
	)
	switch strings.ToLower(cfg.Name) {
	case NameTesseract:
		e, err = newTesseract(cfg.Tesseract)
	case NameOpenAI:
		e, err = NewOpenAI(cfg.OpenAI)
	case NameGemini:
		e, err = NewGemini(ctx, cfg.Gemini)
	case NameRemote:
		e, err = NewRemote(cfg.Remote, nil)
	default:
		return nil, fmt.Errorf("unknown engine: %s (must be one of: %s)", cfg.Name, strings.Join(Names, ", "))
	}
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		e = WithTimeout(e, cfg.Timeout)
	}
	return e, nil
}

// Close releases engine resources when the engine holds any.
func Close(e Engine) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// splitLines turns a free-form transcription into fragments: one per
// non-empty line, with markdown code fences dropped.
func splitLines(s string) []string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "```") {
			continue
		}
		out = append(out, l)
	}
	return out
}
