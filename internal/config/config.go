// Package config loads threadline's YAML configuration over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fragmede/threadline/internal/thread"
)

// Config holds the application configuration.
type Config struct {
	API     APIConfig    `yaml:"api"`
	Thread  ThreadConfig `yaml:"thread"`
	Log     LogConfig    `yaml:"log"`
	DBPath  string       `yaml:"db_path"` // local SQLite backend; empty means use the API
	DataDir string       `yaml:"-"`       // set by caller, not from config file
}

// APIConfig holds the remote comment API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Token      string        `yaml:"token"`
	DataSource string        `yaml:"data_source"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryMax   int           `yaml:"retry_max"`
}

// ThreadConfig controls how much of a thread renders inline.
type ThreadConfig struct {
	InlineDepth   int `yaml:"inline_depth"`   // ceiling on a post's comment screen
	ExtendedDepth int `yaml:"extended_depth"` // ceiling on reply screens
	FoldLimit     int `yaml:"fold_limit"`     // replies shown before "show N more"
}

// LogConfig controls the debug log.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Limits converts the thread settings to depth policy limits.
func (t ThreadConfig) Limits() thread.Limits {
	return thread.Limits{
		InlineDepth:   t.InlineDepth,
		ExtendedDepth: t.ExtendedDepth,
		FoldLimit:     t.FoldLimit,
	}
}

// Default returns a Config with sensible defaults.
func Default() Config {
	dataDir := DefaultDataDir()
	l := thread.DefaultLimits()
	return Config{
		API: APIConfig{
			DataSource: "staging",
			Timeout:    10 * time.Second,
			RetryMax:   3,
		},
		Thread: ThreadConfig{
			InlineDepth:   l.InlineDepth,
			ExtendedDepth: l.ExtendedDepth,
			FoldLimit:     l.FoldLimit,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "debug.log"),
		},
		DataDir: dataDir,
	}
}

// DefaultDataDir is where logs and the local database live.
func DefaultDataDir() string {
	return filepath.Join(userConfigDir(), "threadline")
}

// DefaultConfigPath is the config file read when no --config is given.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// Load reads configuration from path over the defaults. A missing file is
// not an error.
func Load(path, dataDir string) (*Config, error) {
	cfg := Default()
	if dataDir != "" {
		cfg.DataDir = dataDir
		cfg.Log.File = filepath.Join(dataDir, "debug.log")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	defaults := Default()
	if c.API.Timeout == 0 {
		c.API.Timeout = defaults.API.Timeout
	}
	if c.API.DataSource == "" {
		c.API.DataSource = defaults.API.DataSource
	}
	if c.Thread.InlineDepth == 0 {
		c.Thread.InlineDepth = defaults.Thread.InlineDepth
	}
	if c.Thread.ExtendedDepth == 0 {
		c.Thread.ExtendedDepth = defaults.Thread.ExtendedDepth
	}
	if c.Thread.FoldLimit == 0 {
		c.Thread.FoldLimit = defaults.Thread.FoldLimit
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Thread.InlineDepth < 1 {
		errs = append(errs, fmt.Errorf("thread.inline_depth must be at least 1, got %d", c.Thread.InlineDepth))
	}
	if c.Thread.ExtendedDepth < c.Thread.InlineDepth {
		errs = append(errs, fmt.Errorf("thread.extended_depth (%d) must not be below thread.inline_depth (%d)",
			c.Thread.ExtendedDepth, c.Thread.InlineDepth))
	}
	if c.Thread.FoldLimit < 1 {
		errs = append(errs, fmt.Errorf("thread.fold_limit must be at least 1, got %d", c.Thread.FoldLimit))
	}
	if c.API.RetryMax < 0 {
		errs = append(errs, errors.New("api.retry_max must not be negative"))
	}
	return errors.Join(errs...)
}

// ErrNoBackend is returned by RequireBackend when neither a database nor an
// API base URL is configured.
var ErrNoBackend = errors.New("either api.base_url or db_path must be set")

// RequireBackend checks that a comment backend is configured. It runs after
// command-line overrides are applied, so Load does not call it.
func (c *Config) RequireBackend() error {
	if c.DBPath == "" && c.API.BaseURL == "" {
		return ErrNoBackend
	}
	return nil
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}
