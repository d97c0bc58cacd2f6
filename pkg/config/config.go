/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/

// Package config resolves upkeep settings from, in rising precedence:
// built-in defaults, the global config file, UPKEEP_* environment
// variables, and the destination's own .upkeep.toml. Command-line flags
// sit above all of these and are applied by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// LocalFilename is the per-destination override file, looked up at the
// destination root. It pins registry and policy choices to a project so
// upgrades behave the same on every machine that touches it.
const LocalFilename = ".upkeep.toml"

// DefaultRegistry is the public kit registry.
const DefaultRegistry = "https://registry.upkeephq.dev"

// Config holds all effective settings for one invocation.
type Config struct {
	Registry string       `mapstructure:"registry"`
	Channel  string       `mapstructure:"channel"`
	Backup   BackupConfig `mapstructure:"backup"`
	Log      LogConfig    `mapstructure:"log"`
}

// BackupConfig controls the pre-upgrade git snapshot.
type BackupConfig struct {
	Disabled bool `mapstructure:"disabled"`
}

// LogConfig carries logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

var defaultConfig = Config{
	Registry: DefaultRegistry,
	Channel:  "stable",
	Backup:   BackupConfig{Disabled: false},
	Log:      LogConfig{Level: "info", JSON: false},
}

// Load resolves the global configuration: defaults, then the config file
// under the upkeep home, then UPKEEP_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("registry", defaultConfig.Registry)
	v.SetDefault("channel", defaultConfig.Channel)
	v.SetDefault("backup.disabled", defaultConfig.Backup.Disabled)
	v.SetDefault("log.level", defaultConfig.Log.Level)
	v.SetDefault("log.json", defaultConfig.Log.JSON)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := Home(); err == nil {
		v.AddConfigPath(home)
	}

	v.SetEnvPrefix("UPKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional; defaults and env cover its absence.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return &cfg, nil
}

// LoadForDest resolves configuration for a specific destination directory,
// layering its .upkeep.toml over the global result. The destination file
// wins over environment and global settings: a project that pins a
// registry must get that registry everywhere.
func LoadForDest(destDir string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.applyLocal(filepath.Join(destDir, LocalFilename)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// localOverrides mirrors Config with pointer fields so only keys actually
// present in the TOML override the resolved configuration.
type localOverrides struct {
	Registry *string `toml:"registry"`
	Channel  *string `toml:"channel"`
	Backup   *struct {
		Disabled *bool `toml:"disabled"`
	} `toml:"backup"`
	Log *struct {
		Level *string `toml:"level"`
		JSON  *bool   `toml:"json"`
	} `toml:"log"`
}

func (c *Config) applyLocal(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- fixed filename under the destination root
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var local localOverrides
	if err := toml.Unmarshal(data, &local); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if local.Registry != nil {
		c.Registry = *local.Registry
	}
	if local.Channel != nil {
		c.Channel = *local.Channel
	}
	if local.Backup != nil && local.Backup.Disabled != nil {
		c.Backup.Disabled = *local.Backup.Disabled
	}
	if local.Log != nil {
		if local.Log.Level != nil {
			c.Log.Level = *local.Log.Level
		}
		if local.Log.JSON != nil {
			c.Log.JSON = *local.Log.JSON
		}
	}
	return nil
}

// Home returns the upkeep home directory: UPKEEP_HOME when set, otherwise
// the XDG config location.
func Home() (string, error) {
	if home := os.Getenv("UPKEEP_HOME"); home != "" {
		return home, nil
	}
	if xdg.ConfigHome == "" {
		return "", errors.New("cannot determine config directory")
	}
	return filepath.Join(xdg.ConfigHome, "upkeep"), nil
}

// EnsureHome creates the upkeep home directory if needed.
func EnsureHome() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(home, 0o750); err != nil {
		return "", fmt.Errorf("failed to create upkeep home: %w", err)
	}
	return home, nil
}

// CacheDir returns the directory for downloaded archives and staged
// extractions, creating it if needed. UPKEEP_HOME keeps everything under
// one root when set; otherwise the XDG cache location is used.
func CacheDir() (string, error) {
	var dir string
	if home := os.Getenv("UPKEEP_HOME"); home != "" {
		dir = filepath.Join(home, "cache")
	} else {
		if xdg.CacheHome == "" {
			return "", errors.New("cannot determine cache directory")
		}
		dir = filepath.Join(xdg.CacheHome, "upkeep")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	return dir, nil
}

// StagingDir returns a fresh directory under the cache for one download
// and extraction. Callers own cleanup.
func StagingDir() (string, error) {
	cache, err := CacheDir()
	if err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(cache, "staging-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	return dir, nil
}
