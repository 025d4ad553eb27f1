// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the run configuration file when no --config flag
// is given.
const EnvConfigPath = "IMESSAGE_EXPORTER_CONFIG"

// Config is the full run configuration for an export.
type Config struct {
	// Database configures the source chat.db.
	Database DatabaseConfig `yaml:"database"`

	// Export configures the output.
	Export ExportConfig `yaml:"export"`

	// Filter restricts which messages are exported.
	Filter FilterConfig `yaml:"filter"`

	// Logging configures diagnostic output.
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig locates the source database.
type DatabaseConfig struct {
	// Path is the chat.db file to read. Defaults to the standard
	// location under the user's home directory.
	Path string `yaml:"path"`

	// PoolSize is the number of read connections. Zero means one.
	PoolSize int `yaml:"pool_size"`
}

// ExportConfig describes the output of a run.
type ExportConfig struct {
	// Path is the directory export files are written into.
	Path string `yaml:"path"`

	// Format selects the exporter: "txt" or "json".
	Format string `yaml:"format"`

	// Compress wraps each output file in zstd.
	Compress bool `yaml:"compress"`
}

// FilterConfig restricts the exported message range. Dates are
// "YYYY-MM-DD"; an empty string means unbounded on that side.
type FilterConfig struct {
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

// LoggingConfig controls diagnostic output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Database: DatabaseConfig{
			Path:     filepath.Join(home, "Library", "Messages", "chat.db"),
			PoolSize: 1,
		},
		Export: ExportConfig{
			Path:   filepath.Join(home, "imessage_export"),
			Format: "txt",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the file named by IMESSAGE_EXPORTER_CONFIG, or returns
// defaults when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads path over the defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// expandVariables substitutes ${HOME} style references and leading
// tildes in path fields so configs stay portable between machines.
func (c *Config) expandVariables() {
	expand := func(p string) string {
		p = os.ExpandEnv(p)
		if strings.HasPrefix(p, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				p = filepath.Join(home, p[2:])
			}
		}
		return p
	}
	c.Database.Path = expand(c.Database.Path)
	c.Export.Path = expand(c.Export.Path)
}

// Validate checks field values without touching the filesystem.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must be set")
	}
	if c.Database.PoolSize < 0 {
		return fmt.Errorf("database.pool_size must not be negative")
	}
	switch c.Export.Format {
	case "txt", "json":
	default:
		return fmt.Errorf("export.format %q is not supported (want txt or json)", c.Export.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	if _, _, err := c.Filter.Range(); err != nil {
		return err
	}
	return nil
}

// Range parses the filter dates. Zero times mean unbounded.
func (f FilterConfig) Range() (start, end time.Time, err error) {
	parse := func(field, v string) (time.Time, error) {
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, fmt.Errorf("filter.%s %q is not a YYYY-MM-DD date", field, v)
		}
		return t, nil
	}
	if start, err = parse("start_date", f.StartDate); err != nil {
		return
	}
	if end, err = parse("end_date", f.EndDate); err != nil {
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		err = fmt.Errorf("filter.end_date precedes filter.start_date")
	}
	return
}
