package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Database paths
	SQLitePath string `mapstructure:"sqlite-path"`
	FSMDBPath  string `mapstructure:"fsm-db-path"`

	// AWS configuration
	Region string `mapstructure:"region"`

	// Instance metadata service
	IMDSEndpoint    string        `mapstructure:"imds-endpoint"`
	IMDSTokenTTL    time.Duration `mapstructure:"imds-token-ttl"`
	MetadataTimeout time.Duration `mapstructure:"metadata-timeout"`

	// Volume lifecycle
	VolumeWaitTimeout time.Duration `mapstructure:"volume-wait-timeout"`

	// Device materialization. A zero device-wait-timeout disables the bound
	// and polls until cancelled.
	DevicePollInterval time.Duration `mapstructure:"device-poll-interval"`
	DeviceWaitTimeout  time.Duration `mapstructure:"device-wait-timeout"`
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("sqlite-path", ".artifacts/runs.db")
	viper.SetDefault("fsm-db-path", ".artifacts/fsm.db")
	viper.SetDefault("region", "us-east-1")
	viper.SetDefault("imds-endpoint", "http://169.254.169.254")
	viper.SetDefault("imds-token-ttl", 21600*time.Second)
	viper.SetDefault("metadata-timeout", 3*time.Second)
	viper.SetDefault("volume-wait-timeout", 60*time.Second)
	viper.SetDefault("device-poll-interval", 500*time.Millisecond)
	viper.SetDefault("device-wait-timeout", 2*time.Minute)

	// Environment variables (will be VMI_SQLITE_PATH, etc.)
	viper.SetEnvPrefix("VMI")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.vmi")

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()

	// Unmarshal into config struct
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.SQLitePath == "" {
		return fmt.Errorf("sqlite-path cannot be empty")
	}
	if c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty")
	}
	if c.IMDSEndpoint == "" {
		return fmt.Errorf("imds-endpoint cannot be empty")
	}
	if c.IMDSTokenTTL <= 0 {
		return fmt.Errorf("imds-token-ttl must be positive")
	}
	if c.MetadataTimeout <= 0 {
		return fmt.Errorf("metadata-timeout must be positive")
	}
	if c.VolumeWaitTimeout <= 0 {
		return fmt.Errorf("volume-wait-timeout must be positive")
	}
	if c.DevicePollInterval <= 0 {
		return fmt.Errorf("device-poll-interval must be positive")
	}
	if c.DeviceWaitTimeout < 0 {
		return fmt.Errorf("device-wait-timeout must be non-negative")
	}
	return nil
}
