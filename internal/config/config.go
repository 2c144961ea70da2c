// Package config loads cachefsd's configuration with viper: values from
// a YAML file, with CACHEFS_* environment variables overriding the keys
// that file sets, and built-in defaults filling whatever is left unset.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/cachefs/pkg/cachemanager"
)

// Config is cachefsd's full configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (CACHEFS_*), for keys present in the file
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// No command-line flag other than --config feeds into it, and when no
// file is found Load returns the defaults without reading the
// environment.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Cache configures the Cache Manager's tunables and on-disk root.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Backend selects and configures the object backend missed blocks
	// are fetched from.
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`

	// Metrics controls the Prometheus metrics endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// CacheConfig configures the Cache Manager.
type CacheConfig struct {
	// Root is the directory the block store, metadata store, and
	// write-through mirror all live under. Required.
	Root string `mapstructure:"root" validate:"required" yaml:"root"`

	// PrefetchWindow is the number of blocks a sequential read schedules
	// ahead. Default cachemanager.DefaultPrefetchWindow.
	PrefetchWindow int `mapstructure:"prefetch_window" validate:"omitempty,min=1" yaml:"prefetch_window,omitempty"`

	// PrefetchWorkers is the fixed size of the prefetch worker pool.
	// Default cachemanager.DefaultPrefetchWorkers.
	PrefetchWorkers int `mapstructure:"prefetch_workers" validate:"omitempty,min=1" yaml:"prefetch_workers,omitempty"`

	// CacheBlocksCapacity bounds the eviction policy's resident block
	// count. Default cachemanager.DefaultCacheBlocksCapacity.
	CacheBlocksCapacity int `mapstructure:"cache_blocks_capacity" validate:"omitempty,min=1" yaml:"cache_blocks_capacity,omitempty"`

	// TargetGB is a cache size budget in GiB for the Cache Manager's
	// EvictUntilGB. Default 1.0. It is loaded and defaulted here only:
	// cachefsd serve does not read it and runs no eviction pass.
	TargetGB float64 `mapstructure:"target_gb" validate:"omitempty,gt=0" yaml:"target_gb,omitempty"`

	// AllowDirtyEviction permits the Cache Manager's eviction to discard
	// entries with unflushed writes. Default false.
	AllowDirtyEviction bool `mapstructure:"allow_dirty_eviction" yaml:"allow_dirty_eviction,omitempty"`

	// FlushInterval is how often a running server flushes dirty bitmaps
	// to disk in the background. Default 30s.
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"omitempty,gt=0" yaml:"flush_interval,omitempty"`
}

// BackendConfig selects and configures the object backend.
type BackendConfig struct {
	// Type selects the backend implementation: "http", "s3", or "mirror".
	Type string `mapstructure:"type" validate:"required,oneof=http s3 mirror" yaml:"type"`

	HTTP   *HTTPBackendConfig   `mapstructure:"http" yaml:"http,omitempty"`
	S3     *S3BackendConfig     `mapstructure:"s3" yaml:"s3,omitempty"`
	Mirror *MirrorBackendConfig `mapstructure:"mirror" yaml:"mirror,omitempty"`
}

// HTTPBackendConfig configures pkg/backend/httpbackend.
type HTTPBackendConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required_if=Type http" yaml:"base_url"`
	Token   string        `mapstructure:"token" yaml:"token,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// S3BackendConfig configures pkg/backend/s3backend.
type S3BackendConfig struct {
	Bucket         string `mapstructure:"bucket" validate:"required_if=Type s3" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	KeyPrefix      string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// MirrorBackendConfig configures pkg/backend/mirrorbackend as the
// primary object backend (as opposed to its other role, the Cache
// Manager's internal write-through mirror, which is always present).
type MirrorBackendConfig struct {
	Root string `mapstructure:"root" validate:"required_if=Type mirror" yaml:"root"`
}

// MetricsConfig configures the Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected at all.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port the metrics endpoint listens on, when a
	// caller wires one up. Default 9090.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration, returning an actionable error if no
// config file is found at an explicit or default path.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at %s; run %q first",
				GetDefaultConfigPath(), "cachefsd init")
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}
	return Load(configPath)
}

// SaveConfig writes cfg to path as YAML, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CACHEFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cachefsd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "cachefsd")
}

// GetConfigDir returns the configuration directory (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the
// default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyDefaults fills in zero-valued fields with built-in defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Cache.PrefetchWindow == 0 {
		cfg.Cache.PrefetchWindow = cachemanager.DefaultPrefetchWindow
	}
	if cfg.Cache.PrefetchWorkers == 0 {
		cfg.Cache.PrefetchWorkers = cachemanager.DefaultPrefetchWorkers
	}
	if cfg.Cache.CacheBlocksCapacity == 0 {
		cfg.Cache.CacheBlocksCapacity = cachemanager.DefaultCacheBlocksCapacity
	}
	if cfg.Cache.TargetGB == 0 {
		cfg.Cache.TargetGB = 1.0
	}
	if cfg.Cache.FlushInterval == 0 {
		cfg.Cache.FlushInterval = 30 * time.Second
	}

	if cfg.Backend.Type == "" {
		cfg.Backend.Type = "mirror"
	}
	if cfg.Backend.Type == "http" && cfg.Backend.HTTP != nil && cfg.Backend.HTTP.Timeout == 0 {
		cfg.Backend.HTTP.Timeout = 30 * time.Second
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// GetDefaultConfig returns a Config with every default applied, rooted
// at a sensible location for a first run.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Cache: CacheConfig{
			Root: "/tmp/cachefsd-cache",
		},
		Backend: BackendConfig{
			Type:   "mirror",
			Mirror: &MirrorBackendConfig{Root: "/tmp/cachefsd-origin"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
