package config

import (
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/scanocr/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const infoLevel = "info"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, infoLevel, cfg.LogLevel)
	assert.Equal(t, "tesseract", cfg.Engine.Name)
	assert.Equal(t, []string{"en"}, cfg.Engine.Languages)
	assert.Equal(t, "space", cfg.Workflow.Separator)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1800, cfg.Session.TTLSec)
	assert.Equal(t, "text", cfg.Output.Format)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"engine name is case insensitive", func(c *Config) { c.Engine.Name = "OpenAI" }, ""},
		{"newline separator", func(c *Config) { c.Workflow.Separator = "newline" }, ""},
		{"invalid log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"unknown engine", func(c *Config) { c.Engine.Name = "paddle" }, "invalid engine"},
		{"bad language", func(c *Config) { c.Engine.Languages = []string{"not a tag"} }, "engine.languages"},
		{"free-form language for openai", func(c *Config) {
			c.Engine.Name = "openai"
			c.Engine.Languages = []string{"not a tag"}
		}, ""},
		{"blank language for gemini", func(c *Config) {
			c.Engine.Name = "gemini"
			c.Engine.Languages = []string{" "}
		}, "engine.languages"},
		{"negative engine timeout", func(c *Config) { c.Engine.TimeoutSec = -1 }, "engine timeout"},
		{"psm out of range", func(c *Config) { c.Engine.Tesseract.PSM = 14 }, "psm"},
		{"bad separator", func(c *Config) { c.Workflow.Separator = "tab" }, "invalid separator"},
		{"negative max pixels", func(c *Config) { c.Workflow.MaxPixels = -1 }, "max pixels"},
		{"negative max dimension", func(c *Config) { c.Workflow.MaxDimension = -5 }, "max dimension"},
		{"bad output format", func(c *Config) { c.Output.Format = "csv" }, "output format"},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"upload size", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload size"},
		{"server timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"preview size", func(c *Config) { c.Server.PreviewSize = 0 }, "preview size"},
		{"session ttl", func(c *Config) { c.Session.TTLSec = 0 }, "session ttl"},
		{"max sessions", func(c *Config) { c.Session.MaxSessions = -1 }, "max sessions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToEngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Name = "OpenAI"
	cfg.Engine.Languages = []string{"de", "en"}
	cfg.Engine.TimeoutSec = 15
	cfg.Engine.OpenAI.APIKey = "sk-test"
	cfg.Engine.OpenAI.BaseURL = "http://localhost:1234/v1"

	ec := cfg.ToEngineConfig()
	assert.Equal(t, "openai", ec.Name)
	assert.Equal(t, []string{"de", "en"}, ec.Languages)
	assert.Equal(t, 15*time.Second, ec.Timeout)
	assert.Equal(t, 3, ec.Tesseract.PageSegMode)
	assert.Equal(t, "sk-test", ec.OpenAI.APIKey)
	assert.Equal(t, "http://localhost:1234/v1", ec.OpenAI.BaseURL)
	assert.Equal(t, "gemini-1.5-flash", ec.Gemini.Model)

	// The engine config owns its language slice
	ec.Languages[0] = "fr"
	assert.Equal(t, "de", cfg.Engine.Languages[0])
}

func TestToWorkflowOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workflow.Separator = "newline"
	cfg.Workflow.MaxDimension = 2000
	cfg.Workflow.Grayscale = true
	cfg.Engine.Languages = nil

	opts, err := cfg.ToWorkflowOptions()
	require.NoError(t, err)
	assert.Equal(t, workflow.SeparatorNewline, opts.Separator)
	assert.Equal(t, []string{"en"}, opts.Languages)
	assert.Equal(t, 2000, opts.Prepare.MaxDimension)
	assert.True(t, opts.Prepare.Grayscale)

	cfg.Workflow.Separator = "comma"
	_, err = cfg.ToWorkflowOptions()
	assert.Error(t, err)
}

func TestToSessionOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.TTLSec = 90
	cfg.Session.MaxSessions = 7

	opts := cfg.ToSessionOptions()
	assert.Equal(t, 90*time.Second, opts.TTL)
	assert.Equal(t, 7, opts.MaxSessions)
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.OpenAI.APIKey = "sk-secret"

	red := cfg.Redacted()
	assert.Equal(t, redactedValue, red.Engine.OpenAI.APIKey)
	assert.Empty(t, red.Engine.Gemini.APIKey)
	assert.Equal(t, "sk-secret", cfg.Engine.OpenAI.APIKey)
}

func TestYAML(t *testing.T) {
	cfg := DefaultConfig()
	data, err := cfg.YAML()
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "log_level: info\n"), text)
	assert.Contains(t, text, "separator: space")
	assert.Contains(t, text, "max_requests_per_day: 5000")

	var back Config
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, cfg, back)
}
