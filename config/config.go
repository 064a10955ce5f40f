// Package config reads the YAML configuration of the validation tool.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/georgepadayatti/adesval/keys"
)

// Common errors
var (
	ErrConfigurationError   = errors.New("configuration error")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrUnexpectedField      = errors.New("unexpected field in configuration")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConfigurationError
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LogConfig selects the level and format of log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the configuration of a validation run.
type Config struct {
	// Policy is the path of a YAML or XML validation policy. The built-in
	// policy is used when empty.
	Policy string `yaml:"policy"`

	// TrustStores are the files holding the trust anchors.
	TrustStores []keys.TrustStore `yaml:"trust-stores"`

	// ValidationTime overrides the validation time (RFC 3339).
	ValidationTime string `yaml:"validation-time"`

	// Workers bounds the number of signatures validated at once. Zero
	// uses one worker per CPU.
	Workers int `yaml:"workers"`

	// MetricsFile receives the validation metrics in the Prometheus text
	// format after the run.
	MetricsFile string `yaml:"metrics-file"`

	Log LogConfig `yaml:"log"`
}

// Default returns the configuration used without a configuration file.
func Default() *Config {
	return &Config{Log: LogConfig{Level: "info", Format: LogFormatText}}
}

// LoadConfig loads a configuration from a YAML file. Relative paths are
// resolved against the directory of the file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	cfg.ResolvePaths(filepath.Dir(filename))
	return cfg, nil
}

// ParseConfig parses and validates configuration from YAML data. Unknown
// keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		if strings.Contains(err.Error(), "not found in type") {
			return nil, &ConfigError{Message: err.Error(), Err: ErrUnexpectedField}
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePaths makes relative file paths relative to base.
func (c *Config) ResolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Policy = resolve(c.Policy)
	c.MetricsFile = resolve(c.MetricsFile)
	for i := range c.TrustStores {
		c.TrustStores[i].Path = resolve(c.TrustStores[i].Path)
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	for i, s := range c.TrustStores {
		if s.Path == "" {
			return &ConfigError{
				Field:   fmt.Sprintf("trust-stores[%d].path", i),
				Message: "required field is missing",
				Err:     ErrMissingRequiredField,
			}
		}
	}
	if _, err := c.ParsedValidationTime(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return NewConfigError("workers", fmt.Sprintf("must not be negative, got %d", c.Workers))
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			return NewConfigError("log.level", err.Error())
		}
	}
	switch c.Log.Format {
	case "", LogFormatText, LogFormatJSON:
	default:
		return NewConfigError("log.format", fmt.Sprintf("unknown format %q", c.Log.Format))
	}
	return nil
}

// ParsedValidationTime returns the validation time override, or nil.
func (c *Config) ParsedValidationTime() (*time.Time, error) {
	if c.ValidationTime == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, c.ValidationTime)
	if err != nil {
		return nil, NewConfigError("validation-time", fmt.Sprintf("expected RFC 3339, got %q", c.ValidationTime))
	}
	return &t, nil
}

// NewLogger creates a logger writing to w with the configured level and format.
func (c *Config) NewLogger(w io.Writer) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(w)
	if c.Log.Level != "" {
		lvl, err := logrus.ParseLevel(c.Log.Level)
		if err != nil {
			return nil, NewConfigError("log.level", err.Error())
		}
		l.SetLevel(lvl)
	}
	if c.Log.Format == LogFormatJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return l, nil
}
