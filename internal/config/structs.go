//nolint:lll
package config

// Config represents the complete configuration for the scanocr application.
// It covers every command (serve, extract, config) and is loaded from
// configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// OCR engine selection
	Engine EngineConfig `mapstructure:"engine" yaml:"engine" json:"engine"`

	// Upload decoding and result joining
	Workflow WorkflowConfig `mapstructure:"workflow" yaml:"workflow" json:"workflow"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Session store limits (for serve command)
	Session SessionConfig `mapstructure:"session" yaml:"session" json:"session"`

	// Output configuration (for extract command)
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
}

// EngineConfig selects the OCR backend and its settings.
type EngineConfig struct {
	Name       string   `mapstructure:"name" yaml:"name" json:"name"`
	Languages  []string `mapstructure:"languages" yaml:"languages" json:"languages"`
	TimeoutSec int      `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`

	Tesseract TesseractConfig `mapstructure:"tesseract" yaml:"tesseract" json:"tesseract"`
	OpenAI    OpenAIConfig    `mapstructure:"openai" yaml:"openai" json:"openai"`
	Gemini    GeminiConfig    `mapstructure:"gemini" yaml:"gemini" json:"gemini"`
	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote" json:"remote"`
}

// TesseractConfig contains local tesseract settings.
type TesseractConfig struct {
	PSM int `mapstructure:"psm" yaml:"psm" json:"psm"`
}

// OpenAIConfig contains settings for OpenAI-compatible vision endpoints.
type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Model     string `mapstructure:"model" yaml:"model" json:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
}

// GeminiConfig contains Gemini settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	Model  string `mapstructure:"model" yaml:"model" json:"model"`
}

// RemoteConfig points at an OCR HTTP server.
type RemoteConfig struct {
	URL string `mapstructure:"url" yaml:"url" json:"url"`
}

// WorkflowConfig contains decode, preparation and joining settings.
type WorkflowConfig struct {
	Separator    string `mapstructure:"separator" yaml:"separator" json:"separator"`
	MaxPixels    int    `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
	MaxDimension int    `mapstructure:"max_dimension" yaml:"max_dimension" json:"max_dimension"`
	Grayscale    bool   `mapstructure:"grayscale" yaml:"grayscale" json:"grayscale"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	PreviewSize     int             `mapstructure:"preview_size" yaml:"preview_size" json:"preview_size"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// SessionConfig contains session store limits.
type SessionConfig struct {
	TTLSec      int `mapstructure:"ttl_sec" yaml:"ttl_sec" json:"ttl_sec"`
	MaxSessions int `mapstructure:"max_sessions" yaml:"max_sessions" json:"max_sessions"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}
