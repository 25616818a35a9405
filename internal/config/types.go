package config

import "time"

// Target is one selectable camera. Targets are addressed by their position
// in Config.Targets; the first target is the one shown on launch.
type Target struct {
	Label   string `yaml:"label"`
	Address string `yaml:"address"`
}

// Timing holds the loop cadence, all values in milliseconds.
type Timing struct {
	StepDelayMs         int `yaml:"step_delay_ms"`
	TotalDurationMs     int `yaml:"total_duration_ms"`
	AnimationDurationMs int `yaml:"animation_duration_ms"`
	ExitIdleMs          int `yaml:"exit_idle_ms"`
	FetchTimeoutMs      int `yaml:"fetch_timeout_ms"`
}

// FetchTimeout returns the image fetch timeout as a duration.
func (t Timing) FetchTimeout() time.Duration {
	return time.Duration(t.FetchTimeoutMs) * time.Millisecond
}

// Document configures the presentation document rendered on the client.
type Document struct {
	Token      string `yaml:"token"`
	LayoutPath string `yaml:"layout_path,omitempty"`
}

// Speech holds the phrases spoken back to the user.
type Speech struct {
	Fallback string `yaml:"fallback"`
}

// ServerConfig holds HTTP endpoint settings.
type ServerConfig struct {
	Port      int    `yaml:"port" env:"CAMLOOP_PORT"`
	// TokenHash enables bearer auth on /skill. The voice platform never sends
	// an Authorization header, so only set it when a proxy in front of the
	// server adds one.
	TokenHash string `yaml:"token_hash,omitempty"`
}

// Telemetry configures OTLP trace export. An empty endpoint disables it.
type Telemetry struct {
	Endpoint string `yaml:"endpoint,omitempty" env:"CAMLOOP_OTEL_ENDPOINT"`
}

// Config represents camloop.yaml. It is built once at startup and treated
// as read-only afterwards.
type Config struct {
	Targets    []Target     `yaml:"targets"`
	Credential string       `yaml:"credential" env:"CAMLOOP_CREDENTIAL"`
	Timing     Timing       `yaml:"timing"`
	Document   Document     `yaml:"document"`
	Speech     Speech       `yaml:"speech"`
	Server     ServerConfig `yaml:"server"`
	LogLevel   string       `yaml:"log_level" env:"CAMLOOP_LOG_LEVEL"`
	Telemetry  Telemetry    `yaml:"telemetry"`
}

// ClampIndex maps any index into the valid target range. It returns 0 when
// there are no targets.
func (c *Config) ClampIndex(i int) int {
	if i >= len(c.Targets) {
		i = len(c.Targets) - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Target returns the target at the clamped index.
func (c *Config) Target(i int) Target {
	if len(c.Targets) == 0 {
		return Target{}
	}
	return c.Targets[c.ClampIndex(i)]
}
