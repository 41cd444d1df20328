/*
Package config loads the engine configuration.

PURPOSE:
  One YAML file drives the whole process: where the spreadsheet endpoint
  lives, which sheets to read, where the SQLite cache sits, and how the
  HTTP server and sync poller behave.

DEFAULTS:
  Every field has a sensible default so `delegation-engine serve` works
  with an empty file; only the sheet endpoint URL is mandatory.

USAGE:
  cfg, err := config.Load("config.yaml")
  if err != nil { ... }

SEE ALSO:
  - cmd/server/main.go: CLI flags that override file values
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Sheet    SheetConfig    `yaml:"sheet"`
	Holidays HolidaysConfig `yaml:"holidays"`
	Sync     SyncConfig     `yaml:"sync"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SheetConfig points at the spreadsheet endpoint and names the sheets
// the engine reads.
type SheetConfig struct {
	BaseURL          string `yaml:"base_url"`
	TasksSheet       string `yaml:"tasks_sheet"`
	UsersSheet       string `yaml:"users_sheet"`
	WorkingDaysSheet string `yaml:"working_days_sheet"`
}

// HolidaysConfig points at an optional iCalendar public-holiday feed.
// Feed days are subtracted from the working-day calendar.
type HolidaysConfig struct {
	FeedURL string `yaml:"feed_url"`
}

// SyncConfig controls the background refresh poller.
type SyncConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// UnmarshalYAML accepts Go duration strings ("5m", "90s") for the
// interval; yaml.v3 has no native time.Duration support.
func (s *SyncConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Interval string `yaml:"interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Interval == "" {
		return nil
	}
	d, err := time.ParseDuration(raw.Interval)
	if err != nil {
		return fmt.Errorf("sync.interval: %w", err)
	}
	s.Interval = d
	return nil
}

// AuthConfig holds the token-signing secret and session lifetime.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

func (a *AuthConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Secret   string `yaml:"secret"`
		TokenTTL string `yaml:"token_ttl"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Secret != "" {
		a.Secret = raw.Secret
	}
	if raw.TokenTTL != "" {
		d, err := time.ParseDuration(raw.TokenTTL)
		if err != nil {
			return fmt.Errorf("auth.token_ttl: %w", err)
		}
		a.TokenTTL = d
	}
	return nil
}

// DatabaseConfig locates the SQLite cache file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Default returns a configuration with all defaults applied and no
// sheet endpoint set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Sheet: SheetConfig{
			TasksSheet:       "Tasks",
			UsersSheet:       "Users",
			WorkingDaysSheet: "WorkingDays",
		},
		Sync: SyncConfig{
			Interval: 5 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Database: DatabaseConfig{
			Path: "delegation.db",
		},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing
// file is not an error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields that have no usable default.
func (c Config) Validate() error {
	if c.Sheet.BaseURL == "" {
		return fmt.Errorf("sheet.base_url is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	return nil
}
