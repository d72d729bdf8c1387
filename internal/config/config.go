package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/runnerr0/sitetime/internal/hostname"
)

// Default config file path.
const DefaultConfigPath = "~/.config/sitetime/config.yaml"

// Retention policies.
const (
	RetentionIndefinite = "indefinite"
	RetentionDailyReset = "daily_reset"
	RetentionDays       = "days"
)

// Config holds all sitetime configuration.
type Config struct {
	Tracking  TrackingConfig  `yaml:"tracking"`
	Retention RetentionConfig `yaml:"retention"`
	Storage   StorageConfig   `yaml:"storage"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Native    NativeConfig    `yaml:"native"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TrackingConfig struct {
	DebounceMs   int    `yaml:"debounce_ms"`
	HostnameMode string `yaml:"hostname_mode"`
}

type RetentionConfig struct {
	Policy             string `yaml:"policy"`
	Days               int    `yaml:"days"`
	PruneIntervalHours int    `yaml:"prune_interval_hours"`
}

type StorageConfig struct {
	Path              string `yaml:"path"`
	SQLiteFile        string `yaml:"sqlite_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode"`
	Timezone          string `yaml:"timezone"`
}

type DaemonConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxRequestSize int      `yaml:"max_request_size"`
}

type NativeConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read, contains invalid YAML or
// fails validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}

	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Tracking.DebounceMs <= 0 {
		return fmt.Errorf("tracking.debounce_ms must be positive, got %d", c.Tracking.DebounceMs)
	}
	if _, err := hostname.ParseMode(c.Tracking.HostnameMode); err != nil {
		return fmt.Errorf("tracking.hostname_mode: %w", err)
	}

	switch c.Retention.Policy {
	case RetentionIndefinite, RetentionDailyReset:
	case RetentionDays:
		if c.Retention.Days <= 0 {
			return fmt.Errorf("retention.days must be positive for policy %q", RetentionDays)
		}
	default:
		return fmt.Errorf("retention.policy %q is not one of %s, %s, %s",
			c.Retention.Policy, RetentionIndefinite, RetentionDailyReset, RetentionDays)
	}
	if c.Retention.PruneIntervalHours <= 0 {
		return fmt.Errorf("retention.prune_interval_hours must be positive")
	}

	if c.Storage.SQLiteFile == "" {
		return fmt.Errorf("storage.sqlite_file is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port %d out of range", c.Daemon.Port)
	}
	if c.Daemon.MaxRequestSize <= 0 {
		return fmt.Errorf("daemon.max_request_size must be positive")
	}
	if c.Native.MaxMessageSize <= 0 {
		return fmt.Errorf("native.max_message_size must be positive")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not text or json", c.Logging.Format)
	}
	return nil
}

// Debounce returns the visit debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Tracking.DebounceMs) * time.Millisecond
}

// Location returns the timezone calendar days are computed in. An empty
// storage.timezone means the system's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Storage.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Storage.Timezone)
	if err != nil {
		return nil, fmt.Errorf("storage.timezone: %w", err)
	}
	return loc, nil
}

// DBPath returns the expanded path of the SQLite database.
func (c *Config) DBPath() (string, error) {
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// LogPath returns the expanded log file path, or "" for stderr. A relative
// file is placed under storage.path.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File == "" {
		return "", nil
	}
	file, err := expandPath(c.Logging.File)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(file) {
		return file, nil
	}
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, file), nil
}

// Addr returns the daemon listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Daemon.Host, c.Daemon.Port)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
