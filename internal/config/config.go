// Package config loads the tt TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "10s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	DBPath       string   `toml:"db_path"`       // SQLite registry location
	SnapshotPath string   `toml:"snapshot_path"` // optional JSONL mirror, re-exported after every write
	Repo         string   `toml:"repo"`          // "owner/name" override; empty detects from the working directory
	PRLimit      int      `toml:"pr_limit"`      // maximum PRs fetched per scan
	GHTimeout    Duration `toml:"gh_timeout"`    // timeout for each gh invocation
	LogLevel     string   `toml:"log_level"`     // debug, info, warn or error
	LogFile      string   `toml:"log_file"`      // log destination while the TUI owns the terminal
}

// DefaultPath returns the standard config location.
func DefaultPath() string {
	return ExpandHome("~/.tt/config.toml")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	expandPaths(cfg)
	return cfg
}

// Load reads a TOML configuration file. A missing file is not an error;
// every field then takes its default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	expandPaths(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = "~/.tt/tasks.db"
	}
	if cfg.PRLimit == 0 {
		cfg.PRLimit = 100
	}
	if cfg.GHTimeout.Duration == 0 {
		cfg.GHTimeout.Duration = 10 * time.Second
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "~/.tt/tt.log"
	}
}

func validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	if cfg.PRLimit < 0 {
		return fmt.Errorf("pr_limit must be positive, got %d", cfg.PRLimit)
	}
	return nil
}

func expandPaths(cfg *Config) {
	cfg.DBPath = ExpandHome(cfg.DBPath)
	cfg.SnapshotPath = ExpandHome(cfg.SnapshotPath)
	cfg.LogFile = ExpandHome(cfg.LogFile)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
