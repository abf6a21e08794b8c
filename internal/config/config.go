// Package config loads Cloud Budget Sentinel configuration from a YAML
// file and SENTINEL_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/alerts"
	"github.com/spf13/viper"
)

// Config holds all Cloud Budget Sentinel configuration.
type Config struct {
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	CostSource CostSourceConfig `mapstructure:"cost_source"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Push       PushConfig       `mapstructure:"push"`
	Inference  InferenceConfig  `mapstructure:"inference"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig defines the HTTP API settings.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CostSourceConfig defines the billing API the monitor reads spend from.
type CostSourceConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MonitorConfig defines the evaluation cycle settings.
type MonitorConfig struct {
	ThresholdUSD   float64 `mapstructure:"threshold_usd"`
	MinServiceCost float64 `mapstructure:"min_service_cost"`
	CycleSchedule  string  `mapstructure:"cycle_schedule"`
	SweepSchedule  string  `mapstructure:"sweep_schedule"`
}

// AlertsConfig defines the notification gateway settings.
type AlertsConfig struct {
	Topic      string `mapstructure:"topic"`
	GatewayURL string `mapstructure:"gateway_url"`
	Secret     string `mapstructure:"secret"`
}

// PushConfig defines the mobile push channel. When disabled, alerts
// carry no push payload and the device API is still served but sweeps
// are skipped.
type PushConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	PlatformURL      string `mapstructure:"platform_url"`
	PlatformAPIKey   string `mapstructure:"platform_api_key"`
	PlatformAppID    string `mapstructure:"platform_app_id"`
	BundleID         string `mapstructure:"bundle_id"`
	Sandbox          bool   `mapstructure:"sandbox"`
	SweepConcurrency int    `mapstructure:"sweep_concurrency"`
}

// Channel converts the push section into the channel configuration the
// alert deliverer consumes.
func (p PushConfig) Channel() alerts.PushChannelConfig {
	if !p.Enabled {
		return alerts.NoPushChannel{}
	}
	return alerts.PushChannel{
		PlatformAppID: p.PlatformAppID,
		BundleID:      p.BundleID,
		Sandbox:       p.Sandbox,
	}
}

// InferenceConfig defines the budget-gated AI enrichment settings.
type InferenceConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	FallbackOnError   bool          `mapstructure:"fallback_on_error"`
	URL               string        `mapstructure:"url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	CostModelPath     string        `mapstructure:"cost_model_path"`
	BudgetUSD         float64       `mapstructure:"budget_usd"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Temperature       float64       `mapstructure:"temperature"`
}

// RetryConfig defines the shared retry policy for outbound calls.
type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".sentinel"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", filepath.Join(home, ".sentinel", "sentinel.db"))
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("cost_source.timeout", "30s")
	v.SetDefault("monitor.threshold_usd", 100.0)
	v.SetDefault("monitor.min_service_cost", 0.01)
	v.SetDefault("monitor.cycle_schedule", "0 * * * *")
	v.SetDefault("monitor.sweep_schedule", "30 3 * * *")
	v.SetDefault("alerts.topic", "budget-alerts")
	v.SetDefault("push.sweep_concurrency", 4)
	v.SetDefault("inference.fallback_on_error", true)
	v.SetDefault("inference.cost_model_path", "pricing/cost_model.yaml")
	v.SetDefault("inference.budget_usd", 50.0)
	v.SetDefault("inference.cache_ttl", "1h")
	v.SetDefault("inference.requests_per_minute", 10)
	v.SetDefault("inference.temperature", 0.2)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "500ms")
	v.SetDefault("retry.max_delay", "10s")
	v.SetDefault("retry.backoff_multiplier", 2.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Monitor.ThresholdUSD <= 0 {
		return fmt.Errorf("monitor.threshold_usd must be positive, got %v", c.Monitor.ThresholdUSD)
	}
	if c.Inference.Enabled && c.Inference.URL == "" {
		return fmt.Errorf("inference.url is required when inference is enabled")
	}
	if c.Push.Enabled && c.Push.PlatformAppID == "" {
		return fmt.Errorf("push.platform_app_id is required when push is enabled")
	}
	return nil
}
