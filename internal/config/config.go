package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application settings
type Config struct {
	ServerAddress           string        `mapstructure:"SERVER_ADDRESS"`
	StoreDriver             string        `mapstructure:"STORE_DRIVER"`
	StoreDSN                string        `mapstructure:"STORE_DSN"`
	SweepInterval           time.Duration `mapstructure:"SWEEP_INTERVAL"`
	CountdownInterval       time.Duration `mapstructure:"COUNTDOWN_INTERVAL"`
	EndingSoonCheckInterval time.Duration `mapstructure:"ENDING_SOON_CHECK_INTERVAL"`
	EndingSoonThreshold     time.Duration `mapstructure:"ENDING_SOON_THRESHOLD"`
	SubscriberBuffer        int           `mapstructure:"SUBSCRIBER_BUFFER"`
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	SeedDemoData            bool          `mapstructure:"SEED_DEMO_DATA"`
}

var defaults = map[string]any{
	"SERVER_ADDRESS":             ":8080",
	"STORE_DRIVER":               DriverMemory,
	"STORE_DSN":                  "",
	"SWEEP_INTERVAL":             "60s",
	"COUNTDOWN_INTERVAL":         "1s",
	"ENDING_SOON_CHECK_INTERVAL": "10s",
	"ENDING_SOON_THRESHOLD":      "60s",
	"SUBSCRIBER_BUFFER":          32,
	"LOG_LEVEL":                  "info",
	"SEED_DEMO_DATA":             false,
}

// LoadConfig reads app.env from path if present; environment variables override it
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read app.env: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.StoreDSN) == "" {
			return fmt.Errorf("config: STORE_DSN is required for driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if strings.TrimSpace(c.ServerAddress) == "" {
		return fmt.Errorf("config: SERVER_ADDRESS is required")
	}
	for name, d := range map[string]time.Duration{
		"SWEEP_INTERVAL":             c.SweepInterval,
		"COUNTDOWN_INTERVAL":         c.CountdownInterval,
		"ENDING_SOON_CHECK_INTERVAL": c.EndingSoonCheckInterval,
		"ENDING_SOON_THRESHOLD":      c.EndingSoonThreshold,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", name, d)
		}
	}
	if c.SubscriberBuffer <= 0 {
		return fmt.Errorf("config: SUBSCRIBER_BUFFER must be positive, got %d", c.SubscriberBuffer)
	}
	return nil
}
