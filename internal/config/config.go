// Package config handles reading and writing the terse configuration file (~/.terse/config.toml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds terse configuration settings.
type Config struct {
	DBPath        string   `toml:"db_path,omitempty" json:"db_path,omitempty"`
	DefaultFormat string   `toml:"default_format,omitempty" json:"default_format,omitempty"`
	StoreMode     string   `toml:"store_mode,omitempty" json:"store_mode,omitempty"`
	RemoteURL     string   `toml:"remote_url,omitempty" json:"remote_url,omitempty"`
	MinSavings    *int     `toml:"min_savings,omitempty" json:"min_savings,omitempty"`
	DisabledRules []string `toml:"disabled_rules,omitempty" json:"disabled_rules,omitempty"`
	Record        *bool    `toml:"record,omitempty" json:"record,omitempty"`
}

// validKeys lists the allowed configuration keys.
var validKeys = map[string]bool{
	"db_path":        true,
	"default_format": true,
	"store_mode":     true,
	"remote_url":     true,
	"min_savings":    true,
	"disabled_rules": true,
	"record":         true,
}

// ValidKeys returns the sorted list of valid configuration keys.
func ValidKeys() []string {
	return []string{"db_path", "default_format", "disabled_rules", "min_savings", "record", "remote_url", "store_mode"}
}

// Dir returns the terse data directory (~/.terse).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".terse"
	}
	return filepath.Join(home, ".terse")
}

// Path returns the default config file path (~/.terse/config.toml).
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config from the default path.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config from a specific path. Returns an empty Config if
// the file does not exist.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config to the default path.
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config to a specific path, creating parent directories as needed.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// MinSavingsOr returns the configured default threshold, or def when unset.
func (c *Config) MinSavingsOr(def int) int {
	if c.MinSavings == nil {
		return def
	}
	return *c.MinSavings
}

// RecordEnabled reports whether invocations should be written to the ledger.
func (c *Config) RecordEnabled() bool {
	return c.Record == nil || *c.Record
}

// Get returns the string value of a configuration key.
func (c *Config) Get(key string) (string, error) {
	if !validKeys[key] {
		return "", fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(ValidKeys(), ", "))
	}
	switch key {
	case "db_path":
		return c.DBPath, nil
	case "default_format":
		return c.DefaultFormat, nil
	case "store_mode":
		return c.StoreMode, nil
	case "remote_url":
		return c.RemoteURL, nil
	case "min_savings":
		if c.MinSavings == nil {
			return "", nil
		}
		return strconv.Itoa(*c.MinSavings), nil
	case "disabled_rules":
		return strings.Join(c.DisabledRules, ","), nil
	case "record":
		if c.Record == nil {
			return "", nil
		}
		return strconv.FormatBool(*c.Record), nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

// Set assigns a value to a configuration key. An empty value resets the key
// to its default.
func (c *Config) Set(key, value string) error {
	if !validKeys[key] {
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(ValidKeys(), ", "))
	}
	switch key {
	case "db_path":
		c.DBPath = value
	case "default_format":
		if value != "" && value != "table" && value != "json" {
			return fmt.Errorf("default_format must be \"table\" or \"json\", got %q", value)
		}
		c.DefaultFormat = value
	case "store_mode":
		if value != "" && value != "local" && value != "remote" {
			return fmt.Errorf("store_mode must be \"local\" or \"remote\", got %q", value)
		}
		c.StoreMode = value
	case "remote_url":
		c.RemoteURL = value
	case "min_savings":
		if value == "" {
			c.MinSavings = nil
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 100 {
			return fmt.Errorf("min_savings must be an integer between 0 and 100, got %q", value)
		}
		c.MinSavings = &n
	case "disabled_rules":
		c.DisabledRules = nil
		for _, id := range strings.Split(value, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.DisabledRules = append(c.DisabledRules, id)
			}
		}
	case "record":
		if value == "" {
			c.Record = nil
			return nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("record must be true or false, got %q", value)
		}
		c.Record = &b
	}
	return nil
}
