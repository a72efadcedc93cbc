package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanocr/internal/engine"
	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/MeKo-Tech/scanocr/internal/session"
	"github.com/MeKo-Tech/scanocr/internal/workflow"
	"gopkg.in/yaml.v3"
)

const redactedValue = "********"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Engine: EngineConfig{
			Name:       engine.NameTesseract,
			Languages:  slices.Clone(engine.DefaultLanguages),
			TimeoutSec: 60,
			Tesseract:  TesseractConfig{PSM: 3},
			OpenAI:     OpenAIConfig{Model: "gpt-4o-mini", MaxTokens: 2048},
			Gemini:     GeminiConfig{Model: "gemini-1.5-flash"},
			Remote:     RemoteConfig{URL: "http://localhost:8080"},
		},
		Workflow: WorkflowConfig{
			Separator:    string(workflow.DefaultSeparator),
			MaxPixels:    imageio.DefaultMaxPixels,
			MaxDimension: 4096,
			Grayscale:    false,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      120,
			ShutdownTimeout: 10,
			PreviewSize:     1024,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 5000,
				MaxDataPerDayMB:   1024,
			},
		},
		Session: SessionConfig{
			TTLSec:      int(session.DefaultTTL / time.Second),
			MaxSessions: session.DefaultMaxSessions,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if !contains(engine.Names, strings.ToLower(c.Engine.Name)) {
		return fmt.Errorf("invalid engine: %s (must be one of: %s)", c.Engine.Name, strings.Join(engine.Names, ", "))
	}
	if err := engine.ValidateLanguages(c.Engine.Name, c.Engine.Languages); err != nil {
		return fmt.Errorf("invalid engine.languages: %w", err)
	}
	if c.Engine.TimeoutSec < 0 {
		return fmt.Errorf("invalid engine timeout: %d (must not be negative)", c.Engine.TimeoutSec)
	}
	if c.Engine.Tesseract.PSM < 0 || c.Engine.Tesseract.PSM > 13 {
		return fmt.Errorf("invalid tesseract psm: %d (must be between 0 and 13)", c.Engine.Tesseract.PSM)
	}

	if _, err := workflow.ParseSeparator(c.Workflow.Separator); err != nil {
		return err
	}
	if c.Workflow.MaxPixels < 0 {
		return fmt.Errorf("invalid max pixels: %d (must not be negative)", c.Workflow.MaxPixels)
	}
	if c.Workflow.MaxDimension < 0 {
		return fmt.Errorf("invalid max dimension: %d (must not be negative)", c.Workflow.MaxDimension)
	}

	// Validate output format
	validFormats := []string{"text", "json"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	// Validate positive integers
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.PreviewSize <= 0 {
		return fmt.Errorf("invalid preview size: %d (must be positive)", c.Server.PreviewSize)
	}
	if c.Session.TTLSec <= 0 {
		return fmt.Errorf("invalid session ttl: %d (must be positive)", c.Session.TTLSec)
	}
	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("invalid max sessions: %d (must be positive)", c.Session.MaxSessions)
	}

	return nil
}

// ToEngineConfig converts the config to the engine constructor format.
func (c *Config) ToEngineConfig() engine.Config {
	return engine.Config{
		Name:      strings.ToLower(c.Engine.Name),
		Languages: slices.Clone(c.Engine.Languages),
		Timeout:   time.Duration(c.Engine.TimeoutSec) * time.Second,
		Tesseract: engine.TesseractConfig{PageSegMode: c.Engine.Tesseract.PSM},
		OpenAI: engine.OpenAIConfig{
			APIKey:    c.Engine.OpenAI.APIKey,
			BaseURL:   c.Engine.OpenAI.BaseURL,
			Model:     c.Engine.OpenAI.Model,
			MaxTokens: c.Engine.OpenAI.MaxTokens,
		},
		Gemini: engine.GeminiConfig{
			APIKey: c.Engine.Gemini.APIKey,
			Model:  c.Engine.Gemini.Model,
		},
		Remote: engine.RemoteConfig{URL: c.Engine.Remote.URL},
	}
}

// ToWorkflowOptions converts the config to per-session workflow options.
func (c *Config) ToWorkflowOptions() (workflow.Options, error) {
	sep, err := workflow.ParseSeparator(c.Workflow.Separator)
	if err != nil {
		return workflow.Options{}, err
	}
	languages := c.Engine.Languages
	if len(languages) == 0 {
		languages = engine.DefaultLanguages
	}
	return workflow.Options{
		Separator: sep,
		Languages: slices.Clone(languages),
		Prepare: imageio.PrepareOptions{
			MaxDimension: c.Workflow.MaxDimension,
			Grayscale:    c.Workflow.Grayscale,
		},
	}, nil
}

// ToSessionOptions converts the config to session store options.
func (c *Config) ToSessionOptions() session.Options {
	return session.Options{
		TTL:         time.Duration(c.Session.TTLSec) * time.Second,
		MaxSessions: c.Session.MaxSessions,
	}
}

// Redacted returns a copy with credentials masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	if out.Engine.OpenAI.APIKey != "" {
		out.Engine.OpenAI.APIKey = redactedValue
	}
	if out.Engine.Gemini.APIKey != "" {
		out.Engine.Gemini.APIKey = redactedValue
	}
	out.Engine.Languages = slices.Clone(out.Engine.Languages)
	return out
}

// YAML renders the configuration in config file form.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	return slices.Contains(slice, item)
}
