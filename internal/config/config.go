// Package config provides YAML-based configuration loading, validation, and
// defaults for the attachment uploader.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	ServiceNow ServiceNowConfig `yaml:"servicenow"`
	Watch      WatchConfig      `yaml:"watch"`
	LogLevel   string           `yaml:"log_level"`
}

// ServiceNowConfig holds ServiceNow instance connection settings. All fields
// are optional in the file: credentials may instead come from command-line
// flags, an automation connection, or previously stored auth state.
type ServiceNowConfig struct {
	Host           string `yaml:"host"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// WatchConfig controls watch mode: every file created in Dir is uploaded as
// an attachment to the record identified by Table and TableSysID.
type WatchConfig struct {
	Dir         string   `yaml:"dir"`
	Table       string   `yaml:"table"`
	TableSysID  string   `yaml:"table_sys_id"`
	ContentType string   `yaml:"content_type"`
	MetricsAddr string   `yaml:"metrics_addr"`
	SettleDelay Duration `yaml:"settle_delay"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "500ms" or "30s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Load reads a YAML config file, expands environment variables, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand ${VAR} and $VAR references in the YAML.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with all defaults applied and no instance
// settings. Used when no config file is supplied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	sn := &cfg.ServiceNow
	if sn.TimeoutSeconds == 0 {
		sn.TimeoutSeconds = 30
	}

	w := &cfg.Watch
	if w.ContentType == "" {
		w.ContentType = "application/octet-stream"
	}
	if w.MetricsAddr == "" {
		w.MetricsAddr = ":8080"
	}
	if w.SettleDelay.Duration == 0 {
		w.SettleDelay.Duration = 500 * time.Millisecond
	}
}

// validate checks field combinations. Instance settings are optional as a
// whole, but a partial credential is always a mistake.
func validate(cfg *Config) error {
	var errs []error

	sn := cfg.ServiceNow
	if sn.Username != "" && sn.Password == "" {
		errs = append(errs, errors.New("servicenow.password is required when servicenow.username is set"))
	}
	if sn.Username == "" && sn.Password != "" {
		errs = append(errs, errors.New("servicenow.username is required when servicenow.password is set"))
	}
	if sn.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("servicenow.timeout_seconds must not be negative, got %d", sn.TimeoutSeconds))
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn, or error, got %q", cfg.LogLevel))
	}

	// Watch settings are validated only when watch mode is configured.
	w := cfg.Watch
	if w.Dir != "" {
		if w.Table == "" {
			errs = append(errs, errors.New("watch.table is required when watch.dir is set"))
		}
		if w.TableSysID == "" {
			errs = append(errs, errors.New("watch.table_sys_id is required when watch.dir is set"))
		}
		if strings.TrimSpace(w.MetricsAddr) == "" {
			errs = append(errs, errors.New("watch.metrics_addr must not be blank"))
		}
	}

	return errors.Join(errs...)
}
