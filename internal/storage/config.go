// Manages configuration stored in bgs.yaml and opens the configured backend.

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the name of the configuration file in the data directory.
const ConfigFile = "bgs.yaml"

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// DefaultDebounce is the default delay before a write is flushed.
const DefaultDebounce = 300 * time.Millisecond

// Config stores storage and session configuration.
// Loaded from bgs.yaml, created with defaults if missing.
type Config struct {
	// Backend selects the medium: file, sqlite, badger or memory.
	Backend string `yaml:"backend"`

	// Debounce is the flush delay as a Go duration string.
	Debounce string `yaml:"debounce"`

	// QuotaBytes caps the total stored bytes. 0 means unlimited.
	QuotaBytes int64 `yaml:"quota_bytes"`

	// History commits every write to a git repository in the data directory.
	// Only honored by the file backend.
	History bool `yaml:"history"`

	// Auth configures the session's credential handling.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig configures login behavior.
type AuthConfig struct {
	// VerifyPasswords checks passwords against stored bcrypt hashes.
	// When false any password is accepted for a known email.
	VerifyPasswords bool `yaml:"verify_passwords"`

	// LoginRatePerMin limits login attempts per email. 0 means unlimited.
	LoginRatePerMin int `yaml:"login_rate_per_min"`
}

// DefaultConfig returns the configuration used when bgs.yaml is missing.
func DefaultConfig() *Config {
	return &Config{
		Backend:    BackendFile,
		Debounce:   DefaultDebounce.String(),
		QuotaBytes: DefaultQuota,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite, BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (supported: file, sqlite, badger, memory)", c.Backend)
	}
	if _, err := c.DebounceInterval(); err != nil {
		return err
	}
	if c.QuotaBytes < 0 {
		return errors.New("quota_bytes must be non-negative")
	}
	if c.Auth.LoginRatePerMin < 0 {
		return errors.New("auth.login_rate_per_min must be non-negative")
	}
	return nil
}

// DebounceInterval parses Debounce. An empty value yields DefaultDebounce.
func (c *Config) DebounceInterval() (time.Duration, error) {
	if c.Debounce == "" {
		return DefaultDebounce, nil
	}
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid debounce %q: %w", c.Debounce, err)
	}
	if d < 0 {
		return 0, errors.New("debounce must be non-negative")
	}
	return d, nil
}

// LoadConfig reads bgs.yaml from dir, writing the defaults if it is missing.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFile)
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := SaveConfig(dir, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to bgs.yaml in dir.
func SaveConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFile), data, 0o644) //nolint:gosec // G306: config is not secret
}

// Backend is an opened medium plus the optional capabilities of its backend.
type Backend struct {
	Medium  Medium
	Files   *FileStore // nil unless the file backend is used
	History *History   // nil unless history is enabled
}

// Close closes the medium.
func (b *Backend) Close() error {
	return b.Medium.Close()
}

// Open opens the backend selected by cfg in dir.
//
// Supported backends:
//
//	"file"   - one JSON file per key in dir (default)
//	"sqlite" - SQLite database at dir/bgs.db
//	"badger" - Badger database in dir/badger
//	"memory" - in-memory (ephemeral, for testing)
func Open(cfg *Config, dir string) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Backend{}
	var m Medium
	switch cfg.Backend {
	case BackendFile:
		fs, err := NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		if cfg.History {
			h, err := OpenHistory(dir)
			if err != nil {
				return nil, err
			}
			fs.SetHistory(h)
			b.History = h
		}
		b.Files = fs
		m = fs
	case BackendSQLite:
		s, err := NewSQLiteStore(filepath.Join(dir, "bgs.db"))
		if err != nil {
			return nil, err
		}
		m = s
	case BackendBadger:
		s, err := NewBadgerStore(filepath.Join(dir, "badger"))
		if err != nil {
			return nil, err
		}
		m = s
	case BackendMemory:
		m = NewMemoryStore()
	}
	if cfg.QuotaBytes > 0 {
		q, err := WithQuota(m, cfg.QuotaBytes)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		m = q
	}
	b.Medium = m
	return b, nil
}
