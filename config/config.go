// Package config provides YAML configuration parsing for heartboard.
//
// This package enables running heartboard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Heart Rate
//	port: 8080
//	poll_interval: 1s
//	request_timeout: 800ms
//	schema: hr
//
//	source:
//	  url: http://${BRIDGE_HOST:-192.168.240.1}:80
//
//	actuator:
//	  endpoint: 127.0.0.1:502
//	  unit_id: 1
//	  coil: 0
//	  register: 0
//
//	display:
//	  width: 720
//	  height: 720
//	  frame_rate: 60
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/heartboard/telemetry"
)

const (
	// minPollInterval keeps a misconfigured file from flooding the bridge.
	minPollInterval = 100 * time.Millisecond

	defaultPort         = 8080
	defaultPollInterval = time.Second
	defaultSchema       = "hr"
	defaultSourcePort   = 80
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "HeartBoard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the minimum time between bridge requests.
	// Defaults to 1s; must be at least 100ms.
	PollInterval Duration `yaml:"poll_interval"`

	// RequestTimeout bounds each request. Must be shorter than PollInterval.
	// Defaults to 80% of PollInterval.
	RequestTimeout Duration `yaml:"request_timeout"`

	// Schema is the bridge payload layout: "hr" or "period_rate".
	Schema string `yaml:"schema"`

	// Source addresses the sensor bridge.
	Source SourceConfig `yaml:"source"`

	// Actuator optionally mirrors the device state onto a Modbus TCP server.
	Actuator *ActuatorConfig `yaml:"actuator"`

	// Display holds rendering parameters passed through to the dashboard.
	Display DisplayConfig `yaml:"display"`

	// AllowedOrigins restricts CORS on the HTTP API. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SourceConfig addresses the bridge either by base URL or by host and port.
type SourceConfig struct {
	// URL is the bridge base URL. Supports ${VAR} and ${VAR:-default}.
	URL string `yaml:"url"`

	// Host is used when URL is empty. Supports environment substitution.
	Host string `yaml:"host"`

	// Port goes with Host. Defaults to 80.
	Port int `yaml:"port"`
}

// ActuatorConfig addresses the Modbus TCP actuator.
type ActuatorConfig struct {
	// Endpoint is host:port. Supports environment substitution.
	Endpoint string `yaml:"endpoint"`

	// UnitID is the Modbus slave ID (0-247).
	UnitID int `yaml:"unit_id"`

	// Coil is ON while a heart rate is reported.
	Coil int `yaml:"coil"`

	// Register holds the device-state code; Register+1 holds the bpm.
	Register int `yaml:"register"`

	// Timeout bounds connect and each write. Defaults to 1s.
	Timeout Duration `yaml:"timeout"`
}

// DisplayConfig holds rendering parameters. Zero values take the defaults of
// heartboard.DefaultDisplay.
type DisplayConfig struct {
	Width             int                 `yaml:"width"`
	Height            int                 `yaml:"height"`
	FrameRate         int                 `yaml:"frame_rate"`
	HeartRateFont     string              `yaml:"heart_rate_font"`
	HeartRateFontSize int                 `yaml:"heart_rate_font_size"`
	HintFont          string              `yaml:"hint_font"`
	HintFontSize      int                 `yaml:"hint_font_size"`
	LoadingCircle     LoadingCircleConfig `yaml:"loading_circle"`
}

// LoadingCircleConfig is the spinner geometry.
type LoadingCircleConfig struct {
	Radius       float64  `yaml:"radius"`
	Period       Duration `yaml:"period"`
	StrokeWeight float64  `yaml:"stroke_weight"`
	GapRadius    float64  `yaml:"gap_radius"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// LoadEnvFile sets environment variables from a .env file so that ${VAR}
// references in the config can resolve against it. Variables already set in
// the process environment take precedence.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in source.url, source.host and
// actuator.endpoint. Defaults are applied for port, poll_interval,
// request_timeout and schema.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = Duration(cfg.PollInterval.Duration() * 4 / 5)
	}
	if cfg.Schema == "" {
		cfg.Schema = defaultSchema
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.RequestTimeout.Duration() <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout.Duration())
	}
	if c.RequestTimeout >= c.PollInterval {
		return fmt.Errorf("request_timeout (%s) must be shorter than poll_interval (%s)",
			c.RequestTimeout.Duration(), c.PollInterval.Duration())
	}

	if _, err := telemetry.SchemaByName(c.Schema); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	if err := c.Source.expandAndValidate(); err != nil {
		return err
	}

	if c.Actuator != nil {
		if err := c.Actuator.expandAndValidate(); err != nil {
			return err
		}
	}

	if err := c.Display.validate(); err != nil {
		return err
	}

	for i, origin := range c.AllowedOrigins {
		if origin == "" {
			return fmt.Errorf("allowed_origins[%d]: origin cannot be empty", i)
		}
	}

	return nil
}

func (s *SourceConfig) expandAndValidate() error {
	if s.URL == "" && s.Host == "" {
		return errors.New("source: url or host is required")
	}
	if s.URL != "" && s.Host != "" {
		return errors.New("source: url and host are mutually exclusive")
	}

	if s.URL != "" {
		if s.Port != 0 {
			return errors.New("source: port is only valid with host")
		}
		expanded, err := expandEnvVars(s.URL)
		if err != nil {
			return fmt.Errorf("source: url: %w", err)
		}
		s.URL = expanded

		parsedURL, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("source: invalid url: %w", err)
		}
		if parsedURL.Scheme == "" {
			return errors.New("source: url must have a scheme (http:// or https://)")
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("source: url scheme must be http or https, got %q", parsedURL.Scheme)
		}
		if parsedURL.Host == "" {
			return errors.New("source: url must have a host")
		}
		return nil
	}

	expanded, err := expandEnvVars(s.Host)
	if err != nil {
		return fmt.Errorf("source: host: %w", err)
	}
	s.Host = expanded
	if s.Host == "" {
		return errors.New("source: host expanded to an empty value")
	}

	if s.Port == 0 {
		s.Port = defaultSourcePort
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("source: port must be between 1 and 65535, got %d", s.Port)
	}
	return nil
}

func (a *ActuatorConfig) expandAndValidate() error {
	if a.Endpoint == "" {
		return errors.New("actuator: endpoint is required")
	}
	expanded, err := expandEnvVars(a.Endpoint)
	if err != nil {
		return fmt.Errorf("actuator: endpoint: %w", err)
	}
	a.Endpoint = expanded

	if a.UnitID < 0 || a.UnitID > 247 {
		return fmt.Errorf("actuator: unit_id must be between 0 and 247, got %d", a.UnitID)
	}
	if a.Coil < 0 || a.Coil > 0xFFFF {
		return fmt.Errorf("actuator: coil must be between 0 and 65535, got %d", a.Coil)
	}
	// the bpm goes to register+1
	if a.Register < 0 || a.Register > 0xFFFE {
		return fmt.Errorf("actuator: register must be between 0 and 65534, got %d", a.Register)
	}
	if a.Timeout.Duration() < 0 {
		return fmt.Errorf("actuator: timeout cannot be negative, got %s", a.Timeout.Duration())
	}
	return nil
}

func (d *DisplayConfig) validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"width", float64(d.Width)},
		{"height", float64(d.Height)},
		{"frame_rate", float64(d.FrameRate)},
		{"heart_rate_font_size", float64(d.HeartRateFontSize)},
		{"hint_font_size", float64(d.HintFontSize)},
		{"loading_circle.radius", d.LoadingCircle.Radius},
		{"loading_circle.period", float64(d.LoadingCircle.Period)},
		{"loading_circle.stroke_weight", d.LoadingCircle.StrokeWeight},
		{"loading_circle.gap_radius", d.LoadingCircle.GapRadius},
	}
	for _, c := range checks {
		if c.value < 0 {
			return fmt.Errorf("display: %s cannot be negative", c.name)
		}
	}
	if d.FrameRate > 1000 {
		return fmt.Errorf("display: frame_rate must not exceed 1000, got %d", d.FrameRate)
	}
	return nil
}
