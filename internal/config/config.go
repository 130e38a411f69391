package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Account  AccountConfig  `mapstructure:"account"`
	Dedup    DedupConfig    `mapstructure:"dedup"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig holds the local store configuration
type StorageConfig struct {
	Path         string `mapstructure:"path"`          // directory holding the bbolt file
	QuotaBytes   int64  `mapstructure:"quota_bytes"`   // 0 disables the quota
	LegacyMirror bool   `mapstructure:"legacy_mirror"` // keep writing the v1 document
}

// RemoteConfig selects the account store. An empty DSN disables remote sync.
type RemoteConfig struct {
	DSN     string        `mapstructure:"dsn"` // memory://, http(s)://, postgres://
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AccountConfig holds the signed-in identity
type AccountConfig struct {
	UID string `mapstructure:"uid"`
}

// DedupConfig holds the duplicate-trigger windows
type DedupConfig struct {
	Window           time.Duration `mapstructure:"window"`
	Busy             time.Duration `mapstructure:"busy"`
	CompactThreshold int           `mapstructure:"compact_threshold"`
	CompactAge       time.Duration `mapstructure:"compact_age"`
}

// FallbackConfig holds the adapter wait schedule
type FallbackConfig struct {
	Base     time.Duration `mapstructure:"base"`
	Factor   float64       `mapstructure:"factor"`
	Max      time.Duration `mapstructure:"max"`
	Attempts int           `mapstructure:"attempts"`
}

// MetadataConfig holds the TMDb client configuration
type MetadataConfig struct {
	TMDbAPIKey string `mapstructure:"tmdb_api_key"`
	BaseURL    string `mapstructure:"base_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:       defaultDataPath(),
			QuotaBytes: 5 << 20,
		},
		Remote: RemoteConfig{
			Timeout: 10 * time.Second,
		},
		Dedup: DedupConfig{
			Window:           500 * time.Millisecond,
			Busy:             650 * time.Millisecond,
			CompactThreshold: 200,
			CompactAge:       2 * time.Second,
		},
		Fallback: FallbackConfig{
			Base:     100 * time.Millisecond,
			Factor:   1.5,
			Max:      time.Second,
			Attempts: 20,
		},
		Metadata: MetadataConfig{
			BaseURL: "https://api.themoviedb.org/3",
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "shelf.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "shelf")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "shelf")
	}
}

// DefaultConfigPath returns the default config directory for the current OS
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "shelf")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "shelf")
	}
}

// LoadConfig loads configuration from dir (the default config directory when
// empty) and the environment. SHELF_DEDUP_WINDOW overrides dedup.window.
func LoadConfig(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultConfigPath()
	}

	v := newViper(DefaultConfig())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to config.yaml under dir (the default config directory
// when empty)
func SaveConfig(cfg *Config, dir string) error {
	if dir == "" {
		dir = DefaultConfigPath()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := newViper(cfg)
	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// newViper registers every key of cfg so environment overrides resolve for
// keys absent from the file. Durations are written as strings.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.quota_bytes", cfg.Storage.QuotaBytes)
	v.SetDefault("storage.legacy_mirror", cfg.Storage.LegacyMirror)

	v.SetDefault("remote.dsn", cfg.Remote.DSN)
	v.SetDefault("remote.token", cfg.Remote.Token)
	v.SetDefault("remote.timeout", cfg.Remote.Timeout.String())

	v.SetDefault("account.uid", cfg.Account.UID)

	v.SetDefault("dedup.window", cfg.Dedup.Window.String())
	v.SetDefault("dedup.busy", cfg.Dedup.Busy.String())
	v.SetDefault("dedup.compact_threshold", cfg.Dedup.CompactThreshold)
	v.SetDefault("dedup.compact_age", cfg.Dedup.CompactAge.String())

	v.SetDefault("fallback.base", cfg.Fallback.Base.String())
	v.SetDefault("fallback.factor", cfg.Fallback.Factor)
	v.SetDefault("fallback.max", cfg.Fallback.Max.String())
	v.SetDefault("fallback.attempts", cfg.Fallback.Attempts)

	v.SetDefault("metadata.tmdb_api_key", cfg.Metadata.TMDbAPIKey)
	v.SetDefault("metadata.base_url", cfg.Metadata.BaseURL)

	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	return v
}

// Validate rejects settings the components cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Storage.QuotaBytes < 0:
		return fmt.Errorf("storage.quota_bytes must not be negative")
	case c.Dedup.Window <= 0:
		return fmt.Errorf("dedup.window must be positive")
	case c.Dedup.Busy < 0:
		return fmt.Errorf("dedup.busy must not be negative")
	case c.Fallback.Attempts <= 0:
		return fmt.Errorf("fallback.attempts must be positive")
	case c.Fallback.Factor < 1:
		return fmt.Errorf("fallback.factor must be at least 1")
	}
	return nil
}

// IsSignedIn returns true if an account uid is configured
func (c *Config) IsSignedIn() bool {
	return c.Account.UID != ""
}

// RemoteEnabled returns true if a remote DSN is configured
func (c *Config) RemoteEnabled() bool {
	return c.Remote.DSN != ""
}
