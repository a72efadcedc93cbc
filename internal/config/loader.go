package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "scanocr"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "SCANOCR"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, so flags bound
// by the root command are seen.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on v. Tests use a fresh instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads the first scanocr config file found on the search paths,
// then environment variables and defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile loads configuration from a specific file path. An empty
// path searches the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.load(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation is LoadWithFile without the Validate step. The
// config command uses it to show a broken file.
func (l *Loader) LoadWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile)
}

func (l *Loader) load(configFile string) (*Config, error) {
	if configFile != "" {
		// Check if file exists
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, continue with defaults and env vars
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
// Provider keys also fall back to the vendors' conventional variables.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	_ = l.v.BindEnv("engine.openai.api_key", EnvPrefix+"_ENGINE_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = l.v.BindEnv("engine.gemini.api_key", EnvPrefix+"_ENGINE_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Global settings
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	// Engine defaults
	l.v.SetDefault("engine.name", defaults.Engine.Name)
	l.v.SetDefault("engine.languages", defaults.Engine.Languages)
	l.v.SetDefault("engine.timeout_sec", defaults.Engine.TimeoutSec)
	l.v.SetDefault("engine.tesseract.psm", defaults.Engine.Tesseract.PSM)
	l.v.SetDefault("engine.openai.api_key", defaults.Engine.OpenAI.APIKey)
	l.v.SetDefault("engine.openai.base_url", defaults.Engine.OpenAI.BaseURL)
	l.v.SetDefault("engine.openai.model", defaults.Engine.OpenAI.Model)
	l.v.SetDefault("engine.openai.max_tokens", defaults.Engine.OpenAI.MaxTokens)
	l.v.SetDefault("engine.gemini.api_key", defaults.Engine.Gemini.APIKey)
	l.v.SetDefault("engine.gemini.model", defaults.Engine.Gemini.Model)
	l.v.SetDefault("engine.remote.url", defaults.Engine.Remote.URL)

	// Workflow defaults
	l.v.SetDefault("workflow.separator", defaults.Workflow.Separator)
	l.v.SetDefault("workflow.max_pixels", defaults.Workflow.MaxPixels)
	l.v.SetDefault("workflow.max_dimension", defaults.Workflow.MaxDimension)
	l.v.SetDefault("workflow.grayscale", defaults.Workflow.Grayscale)

	// Server defaults
	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.preview_size", defaults.Server.PreviewSize)
	l.v.SetDefault("server.rate_limit.enabled", defaults.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", defaults.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", defaults.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", defaults.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day_mb", defaults.Server.RateLimit.MaxDataPerDayMB)

	// Session defaults
	l.v.SetDefault("session.ttl_sec", defaults.Session.TTLSec)
	l.v.SetDefault("session.max_sessions", defaults.Session.MaxSessions)

	// Output defaults
	l.v.SetDefault("output.format", defaults.Output.Format)
}

// WriteDefaultConfigFile writes the default configuration as YAML. An
// existing file is not overwritten.
func WriteDefaultConfigFile(filename string) (string, error) {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	if _, err := os.Stat(filename); err == nil {
		return "", fmt.Errorf("config file already exists: %s", filename)
	}

	defaults := DefaultConfig()
	data, err := defaults.YAML()
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return "", fmt.Errorf("write config file: %w", err)
	}
	return filename, nil
}

// GetConfigSearchPaths returns the paths where configuration files are
// searched, in order.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists && configDir != "" {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, "/etc/"+ConfigFileName)
}
