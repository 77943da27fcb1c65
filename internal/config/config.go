// Package config loads rlg's on-disk configuration: a TOML file holding
// global defaults and a YAML file listing named target profiles.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config represents ~/.rlg/config.toml.
type Config struct {
	DefaultProfile     string `toml:"default_profile,omitempty" json:"default_profile"`
	CompatibilityMode  bool   `toml:"compatibility_mode" json:"compatibility_mode"`
	LogLevel           string `toml:"log_level,omitempty" json:"log_level"`
	CompanionPrefix    string `toml:"companion_prefix,omitempty" json:"companion_prefix"`
}

// configDirOverride is set by the --config-dir flag or RLG_HOME env var.
var configDirOverride string

// SetConfigDir allows the CLI to pass in the --config-dir / RLG_HOME value.
func SetConfigDir(dir string) {
	configDirOverride = dir
}

// Home returns the config directory path.
// Precedence: --config-dir flag / SetConfigDir > RLG_HOME env > ~/.rlg
func Home() string {
	if configDirOverride != "" {
		return configDirOverride
	}
	if v := os.Getenv("RLG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".rlg")
	}
	return filepath.Join(home, ".rlg")
}

// ConfigPath returns the full path to config.toml.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// ProfilesPath returns the full path to profiles.yaml.
func ProfilesPath() string {
	return filepath.Join(Home(), "profiles.yaml")
}

// EnsureDir creates the rlg home directory if it does not exist.
func EnsureDir() error {
	return os.MkdirAll(Home(), 0o755)
}

// Load reads config.toml and returns a Config struct.
// If the file does not exist, it returns a Config with defaults applied.
func Load() (*Config, error) {
	cfg := &Config{CompatibilityMode: true, CompanionPrefix: "_rlg_", LogLevel: "info"}
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}
	return cfg, nil
}

// Save writes the Config struct back to config.toml.
func Save(cfg *Config) error {
	if err := EnsureDir(); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o644)
}

// validKeys lists the dot-separated keys that can be used with Get/Set.
var validKeys = map[string]bool{
	"default_profile":    true,
	"compatibility_mode":  true,
	"log_level":           true,
	"companion_prefix":    true,
}

// Get retrieves a single config value by dot-separated key.
func Get(key string) (string, error) {
	if !validKeys[key] {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return getField(cfg, key)
}

// Set sets a single config value by dot-separated key.
func Set(key, value string) error {
	if !validKeys[key] {
		return fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return err
	}
	if err := setField(cfg, key, value); err != nil {
		return err
	}
	return Save(cfg)
}

func getField(cfg *Config, key string) (string, error) {
	switch key {
	case "default_profile":
		return cfg.DefaultProfile, nil
	case "compatibility_mode":
		return fmt.Sprintf("%v", cfg.CompatibilityMode), nil
	case "log_level":
		return cfg.LogLevel, nil
	case "companion_prefix":
		return cfg.CompanionPrefix, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

func setField(cfg *Config, key, value string) error {
	switch key {
	case "default_profile":
		cfg.DefaultProfile = value
	case "compatibility_mode":
		cfg.CompatibilityMode = strings.EqualFold(value, "true") || value == "1"
	case "log_level":
		cfg.LogLevel = value
	case "companion_prefix":
		cfg.CompanionPrefix = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
