package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// GatewayConfig holds the connection settings for the hosted backend.
type GatewayConfig struct {
	// BaseURL is the root URL of the backend project
	// (e.g., https://abcd.backend.example.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// RealtimeURL is the websocket endpoint of the change feed. When empty it
	// is derived from BaseURL.
	RealtimeURL string `mapstructure:"realtime_url" yaml:"realtime_url"`

	// AnonKey is the public project key sent with every request.
	AnonKey string `mapstructure:"anon_key" yaml:"anon_key"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// CacheConfig holds settings for the local guest cache.
type CacheConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
	File        string `mapstructure:"file" yaml:"file"`
}

// NotificationsConfig controls how local mutations are echoed to the backend.
type NotificationsConfig struct {
	// WritePolicy is "best_effort" (single attempt) or "retry".
	WritePolicy   string `mapstructure:"write_policy" yaml:"write_policy"`
	RetryAttempts int    `mapstructure:"retry_attempts" yaml:"retry_attempts"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Gateway       GatewayConfig       `mapstructure:"gateway" yaml:"gateway"`
	Cache         CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
}

// envPrefix is the prefix for environment overrides, e.g.
// FARMFRESH_GATEWAY_BASE_URL.
const envPrefix = "FARMFRESH"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/farmfresh/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "farmfresh")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Gateway: GatewayConfig{
			TimeoutSec: 30,
		},
		Cache: CacheConfig{
			Path: filepath.Join(configDir(), "cache.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(configDir(), "farmfresh.log"),
		},
		Notifications: NotificationsConfig{
			WritePolicy:   "best_effort",
			RetryAttempts: 3,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.realtime_url", "")
	v.SetDefault("gateway.anon_key", "")
	v.SetDefault("gateway.timeout_sec", d.Gateway.TimeoutSec)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("notifications.write_policy", d.Notifications.WritePolicy)
	v.SetDefault("notifications.retry_attempts", d.Notifications.RetryAttempts)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with FARMFRESH_ override file values. If the
// file does not exist, defaults plus environment overrides are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Gateway.TimeoutSec <= 0 {
		cfg.Gateway.TimeoutSec = 30
	}
	if cfg.Notifications.RetryAttempts < 0 {
		cfg.Notifications.RetryAttempts = 0
	}
	cfg.Gateway.BaseURL = strings.TrimRight(cfg.Gateway.BaseURL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("gateway.base_url", cfg.Gateway.BaseURL)
	v.Set("gateway.realtime_url", cfg.Gateway.RealtimeURL)
	v.Set("gateway.anon_key", cfg.Gateway.AnonKey)
	v.Set("gateway.timeout_sec", cfg.Gateway.TimeoutSec)
	v.Set("cache.path", cfg.Cache.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.development", cfg.Log.Development)
	v.Set("log.file", cfg.Log.File)
	v.Set("notifications.write_policy", cfg.Notifications.WritePolicy)
	v.Set("notifications.retry_attempts", cfg.Notifications.RetryAttempts)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// RealtimeEndpoint returns the websocket URL of the change feed, deriving it
// from the base URL when not configured explicitly.
func (c GatewayConfig) RealtimeEndpoint() string {
	if c.RealtimeURL != "" {
		return c.RealtimeURL
	}
	u := c.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/realtime/v1/websocket"
}
