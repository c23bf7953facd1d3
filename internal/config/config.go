package config

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml"
)

// ── Configuration ──────────────────────────────────────────
// One TOML file drives a build: where the metadata files live, which
// backend receives the records, and build-time tuning.

// Backend type identifiers accepted in [database].type.
const (
	BackendFile  = "tinydb"
	BackendMongo = "mongodb"
)

// RawMetadata locates the source files for one build.
type RawMetadata struct {
	Directory string `toml:"directory"`
	FileType  string `toml:"file_type"`
}

// Database names the storage backend and its connection parameters.
type Database struct {
	Type string `toml:"type"`

	// Embedded file backend.
	Location string `toml:"location"`

	// Networked backend.
	Address        string `toml:"address"`
	Port           int    `toml:"port"`
	DBName         string `toml:"db_name"`
	CollectionName string `toml:"collection_name"`
}

// Build tunes the run itself. All fields are optional.
type Build struct {
	Workers        int    `toml:"workers"`
	RecursionLimit int    `toml:"recursion_limit"`
	History        string `toml:"history"`
	WatchDebounce  int    `toml:"watch_debounce_ms"`
	Schedule       string `toml:"schedule"`
}

// Config is the parsed configuration file.
type Config struct {
	RawMetadata RawMetadata `toml:"raw_metadata"`
	Database    Database    `toml:"database"`
	Build       Build       `toml:"build"`

	// Dir is the directory containing the config file; relative paths in
	// the config resolve against it.
	Dir string `toml:"-"`
}

var knownFileTypes = map[string]bool{
	".json": true,
	".odml": true,
	".csv":  true,
	".tsv":  true,
	".dsv":  true,
}

// Load reads and validates a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(abs)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Type == BackendMongo && c.Database.Port == 0 {
		c.Database.Port = 27017
	}
	if c.Build.Workers <= 0 {
		c.Build.Workers = 1
	}
	if c.Build.WatchDebounce <= 0 {
		c.Build.WatchDebounce = 500
	}
}

func (c *Config) validate() error {
	if c.RawMetadata.Directory == "" {
		return fmt.Errorf("[raw_metadata] directory is required")
	}
	if c.RawMetadata.FileType == "" {
		return fmt.Errorf("[raw_metadata] file_type is required")
	}
	if !knownFileTypes[c.RawMetadata.FileType] {
		return fmt.Errorf("[raw_metadata] file_type %q is not one of .json/.odml/.csv/.tsv/.dsv", c.RawMetadata.FileType)
	}

	switch c.Database.Type {
	case BackendFile:
		if c.Database.Location == "" {
			return fmt.Errorf("[database] location is required for type %q", BackendFile)
		}
	case BackendMongo:
		if c.Database.Address == "" {
			return fmt.Errorf("[database] address is required for type %q", BackendMongo)
		}
		if c.Database.DBName == "" || c.Database.CollectionName == "" {
			return fmt.Errorf("[database] db_name and collection_name are required for type %q", BackendMongo)
		}
	case "":
		return fmt.Errorf("[database] type is required (%q or %q)", BackendFile, BackendMongo)
	default:
		return fmt.Errorf("[database] unknown type %q (%q or %q)", c.Database.Type, BackendFile, BackendMongo)
	}
	return nil
}

// SourceDir returns the metadata directory, resolved against the config
// file location when relative.
func (c *Config) SourceDir() string {
	return c.resolve(c.RawMetadata.Directory)
}

// StorePath returns the embedded backend's file location, resolved against
// the config file location when relative.
func (c *Config) StorePath() string {
	return c.resolve(c.Database.Location)
}

// HistoryPath returns the run-history database location, or "" when
// history is disabled.
func (c *Config) HistoryPath() string {
	if c.Build.History == "" {
		return ""
	}
	return c.resolve(c.Build.History)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}
