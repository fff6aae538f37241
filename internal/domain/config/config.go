// Package config holds the application configuration and the user-facing
// error type the CLI reports with.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when it exists in the working directory and no
// explicit path is given.
const DefaultFile = "theatre.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "THEATRE_"

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// MetricsConfig controls the Prometheus recorder.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"METRICS"`
	Namespace string `yaml:"namespace" env:"METRICS_NAMESPACE"`
}

// Config is the application configuration. Precedence, lowest first:
// defaults, the YAML file, THEATRE_* environment variables.
type Config struct {
	Log         LogConfig     `yaml:"log"`
	CatalogPath string        `yaml:"catalog" env:"CATALOG"`
	ToolsPath   string        `yaml:"tools" env:"TOOLS"`
	Metrics     MetricsConfig `yaml:"metrics"`
	DelayScale  float64       `yaml:"delay_scale" env:"DELAY_SCALE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:        LogConfig{Level: "info", Format: "text"},
		Metrics:    MetricsConfig{Namespace: "theatre"},
		DelayScale: 1,
	}
}

// Load builds the configuration from defaults, the file at path and the
// process environment. An empty path reads DefaultFile if present.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if explicit {
				return NewConfigNotFoundError(path)
			}
			return nil
		}
		return NewConfigParseError(path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return NewConfigParseError(path, err)
	}
	return nil
}

// ApplyEnv overlays THEATRE_* variables. A nil environ reads the process
// environment.
func (c *Config) ApplyEnv(environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return (&UserError{
			Code:       ErrCodeConfigParse,
			Message:    "invalid environment override",
			Suggestion: "Check the THEATRE_* variables: booleans are true/false and THEATRE_DELAY_SCALE is a number.",
		}).WithUnderlying(err)
	}
	return nil
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json", "zap", "none"}
)

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var list ErrorList
	if !oneOf(c.Log.Level, validLevels) {
		list.AddValidation("log.level", fmt.Sprintf("unknown level %q", c.Log.Level),
			"Use one of: "+strings.Join(validLevels, ", "))
	}
	if !oneOf(c.Log.Format, validFormats) {
		list.AddValidation("log.format", fmt.Sprintf("unknown format %q", c.Log.Format),
			"Use one of: "+strings.Join(validFormats, ", "))
	}
	if c.DelayScale < 0 {
		list.AddValidation("delay_scale", "cannot be negative",
			"Use 1 for real time, 0 to make every step immediate.")
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Namespace) == "" {
		list.AddValidation("metrics.namespace", "cannot be empty when metrics are enabled",
			"Set metrics.namespace or THEATRE_METRICS_NAMESPACE.")
	}
	return list.AsError()
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
