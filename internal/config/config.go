// Package config loads sync engine configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of the sync engine. Values come from
// barsync.yaml, BARSYNC_* environment variables, or the defaults below,
// in that order of precedence.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	DeviceID string `mapstructure:"device_id"`

	API struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"api"`

	Sync struct {
		Workers        int           `mapstructure:"workers"`
		BatchSize      int           `mapstructure:"batch_size"`
		MaxRetries     int           `mapstructure:"max_retries"`
		BackoffBase    time.Duration `mapstructure:"backoff_base"`
		BackoffCap     time.Duration `mapstructure:"backoff_cap"`
		PushInterval   time.Duration `mapstructure:"push_interval"`
		PullInterval   time.Duration `mapstructure:"pull_interval"`
		PullPageSize   int           `mapstructure:"pull_page_size"`
		CompletedGrace time.Duration `mapstructure:"completed_grace"`
	} `mapstructure:"sync"`

	Idempotency struct {
		TTL           time.Duration `mapstructure:"ttl"`
		SweepInterval time.Duration `mapstructure:"sweep_interval"`
	} `mapstructure:"idempotency"`

	Log struct {
		Level      string `mapstructure:"level"`
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".barsync")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.backoff_base", time.Second)
	v.SetDefault("sync.backoff_cap", time.Minute)
	v.SetDefault("sync.push_interval", time.Minute)
	v.SetDefault("sync.pull_interval", 5*time.Minute)
	v.SetDefault("sync.pull_page_size", 200)
	v.SetDefault("sync.completed_grace", 24*time.Hour)
	v.SetDefault("idempotency.ttl", 5*time.Minute)
	v.SetDefault("idempotency.sweep_interval", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_backups", 3)
}

// Load reads configuration from the given file path. An empty path falls
// back to barsync.yaml in the working directory; a missing file is not an
// error, defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BARSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("barsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be at least 1, got %d", c.Sync.Workers)
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("sync.batch_size must be at least 1, got %d", c.Sync.BatchSize)
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries must not be negative, got %d", c.Sync.MaxRetries)
	}
	if c.Sync.BackoffBase <= 0 || c.Sync.BackoffCap < c.Sync.BackoffBase {
		return fmt.Errorf("backoff base/cap misconfigured: base=%s cap=%s",
			c.Sync.BackoffBase, c.Sync.BackoffCap)
	}
	return nil
}
