package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/thruflo/camloop/internal/logging"
)

// Default values for Config.
const (
	DefaultStepDelayMs         = 500
	DefaultTotalDurationMs     = 60_000
	DefaultAnimationDurationMs = 120
	DefaultExitIdleMs          = 80
	DefaultFetchTimeoutMs      = 6_000
	DefaultDocumentToken       = "cam"
	DefaultFallbackSpeech      = "Sorry, I didn't understand."
	DefaultServerPort          = 8375
	DefaultConfigFile          = "camloop.yaml"
	DefaultEnvFile             = ".camloop.env"
)

// DefaultTiming returns the default loop cadence (about two frames per
// second for one minute).
func DefaultTiming() Timing {
	return Timing{
		StepDelayMs:         DefaultStepDelayMs,
		TotalDurationMs:     DefaultTotalDurationMs,
		AnimationDurationMs: DefaultAnimationDurationMs,
		ExitIdleMs:          DefaultExitIdleMs,
		FetchTimeoutMs:      DefaultFetchTimeoutMs,
	}
}

// DefaultConfig returns a Config with every default applied and no targets.
func DefaultConfig() Config {
	return Config{
		Timing:   DefaultTiming(),
		Document: Document{Token: DefaultDocumentToken},
		Speech:   Speech{Fallback: DefaultFallbackSpeech},
		Server:   ServerConfig{Port: DefaultServerPort},
		LogLevel: "warn",
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Load reads the YAML file at path, applies defaults for missing fields,
// then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if cfg.Document.LayoutPath != "" && !filepath.IsAbs(cfg.Document.LayoutPath) {
		cfg.Document.LayoutPath = filepath.Join(filepath.Dir(path), cfg.Document.LayoutPath)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML over DefaultConfig. It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all config values are usable.
func Validate(cfg *Config) error {
	if len(cfg.Targets) == 0 {
		return ValidationError{Field: "targets", Message: "at least one target is required"}
	}
	for i, t := range cfg.Targets {
		field := fmt.Sprintf("targets[%d]", i)
		if t.Label == "" {
			return ValidationError{Field: field + ".label", Message: "required field is empty"}
		}
		u, err := url.Parse(t.Address)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ValidationError{Field: field + ".address", Message: "must be an absolute http(s) URL"}
		}
	}

	timing := cfg.Timing
	if timing.StepDelayMs <= 0 {
		return ValidationError{Field: "timing.step_delay_ms", Message: "must be positive"}
	}
	if timing.TotalDurationMs <= 0 {
		return ValidationError{Field: "timing.total_duration_ms", Message: "must be positive"}
	}
	if timing.AnimationDurationMs < 0 {
		return ValidationError{Field: "timing.animation_duration_ms", Message: "must not be negative"}
	}
	if timing.ExitIdleMs < 0 {
		return ValidationError{Field: "timing.exit_idle_ms", Message: "must not be negative"}
	}
	if timing.FetchTimeoutMs <= 0 {
		return ValidationError{Field: "timing.fetch_timeout_ms", Message: "must be positive"}
	}

	if cfg.Document.Token == "" {
		return ValidationError{Field: "document.token", Message: "required field is empty"}
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return ValidationError{Field: "server.port", Message: "must be between 0 and 65535"}
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return ValidationError{Field: "log_level", Message: err.Error()}
	}

	return nil
}
