// Package config manages OVC configuration and the .ovc directory structure.
// It handles loading, saving, and initializing the repository configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	OVCDir       = ".ovc"
	ConfigFile   = "config"
	DatabaseFile = "graph.db"
	CacheFile    = "merge-cache.db"
)

// ErrNotRepository is returned when no .ovc directory is found
var ErrNotRepository = errors.New("not an ovc repository (or any parent up to root)")

// Cache backend names
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
)

// MergeConfig tunes the merge pipeline
type MergeConfig struct {
	MaxAttempts int  `toml:"max_attempts"`
	Workers     int  `toml:"workers"`
	AutoResolve bool `toml:"auto_resolve"`
}

// CacheConfig selects the persistent tier of the merge result cache
type CacheConfig struct {
	Backend     string `toml:"backend"` // memory, redis or sqlite
	RedisAddr   string `toml:"redis_addr,omitempty"`
	RedisDB     int    `toml:"redis_db,omitempty"`
	RedisPrefix string `toml:"redis_prefix,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"` // relative paths resolve inside .ovc
}

// RetryConfig configures retries of transient store errors
type RetryConfig struct {
	MaxRetries     int      `toml:"max_retries"`
	InitialBackoff Duration `toml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff"`
}

// Config represents the OVC configuration
type Config struct {
	Author        string      `toml:"author"`
	DefaultBranch string      `toml:"default_branch"`
	LogLevel      string      `toml:"log_level"`  // debug, info, warn, error
	LogFormat     string      `toml:"log_format"` // text or json
	WeaviateURL   string      `toml:"weaviate_url,omitempty"`
	Merge         MergeConfig `toml:"merge"`
	Cache         CacheConfig `toml:"cache"`
	Retry         RetryConfig `toml:"retry"`
	path          string      // path to .ovc directory
}

// Duration is a time.Duration written as a string such as "250ms"
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns the configuration written by Initialize
func Default() *Config {
	return &Config{
		DefaultBranch: "main",
		LogLevel:      "warn",
		LogFormat:     "text",
		Merge: MergeConfig{
			MaxAttempts: 3,
			Workers:     4,
		},
		Cache: CacheConfig{Backend: CacheMemory},
		Retry: RetryConfig{
			MaxRetries:     3,
			InitialBackoff: Duration{100 * time.Millisecond},
			MaxBackoff:     Duration{5 * time.Second},
		},
	}
}

// FindOVCRoot finds the .ovc directory by walking up from dir
func FindOVCRoot(dir string) (string, error) {
	for {
		ovcPath := filepath.Join(dir, OVCDir)
		if info, err := os.Stat(ovcPath); err == nil && info.IsDir() {
			return ovcPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotRepository
		}
		dir = parent
	}
}

// Load loads the configuration from the .ovc directory above the working directory
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return LoadFrom(cwd)
}

// LoadFrom loads the configuration from the .ovc directory above dir. Keys
// missing from the file keep their defaults.
func LoadFrom(dir string) (*Config, error) {
	ovcPath, err := FindOVCRoot(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(ovcPath, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.path = ovcPath
	return cfg, nil
}

// Validate checks values that have a fixed set of options
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheSQLite:
	case "":
		c.Cache.Backend = CacheMemory
	default:
		return fmt.Errorf("invalid cache backend %q (want memory, redis or sqlite)", c.Cache.Backend)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q (want text or json)", c.LogFormat)
	}
	if c.Merge.MaxAttempts < 1 {
		return fmt.Errorf("merge.max_attempts must be at least 1")
	}
	return nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// OVCPath returns the path to the .ovc directory
func (c *Config) OVCPath() string {
	return c.path
}

// DatabasePath returns the path to the bbolt graph store
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// CachePath returns the path of the SQLite merge cache
func (c *Config) CachePath() string {
	if c.Cache.SQLitePath == "" {
		return filepath.Join(c.path, CacheFile)
	}
	if filepath.IsAbs(c.Cache.SQLitePath) {
		return c.Cache.SQLitePath
	}
	return filepath.Join(c.path, c.Cache.SQLitePath)
}

// Initialize creates a new .ovc directory in dir with the default configuration
func Initialize(dir, author string) (*Config, error) {
	ovcPath := filepath.Join(dir, OVCDir)

	if _, err := os.Stat(ovcPath); err == nil {
		return nil, fmt.Errorf("ovc repository already exists")
	}

	if err := os.MkdirAll(ovcPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .ovc directory: %w", err)
	}

	cfg := Default()
	cfg.Author = author
	cfg.path = ovcPath

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(ovcPath)
		return nil, err
	}

	return cfg, nil
}
