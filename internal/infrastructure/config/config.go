package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all client configuration.
type Config struct {
	Server  ServerConfig
	Request RequestConfig
	Poll    PollConfig
	Logging LogConfig
}

// ServerConfig holds session service endpoint configuration.
type ServerConfig struct {
	BaseURL string `envconfig:"JUPYTER_BASE_URL" default:"http://localhost:8888"`
	Token   string `envconfig:"JUPYTER_TOKEN" default:""`
}

// RequestConfig holds transport configuration.
type RequestConfig struct {
	Timeout       time.Duration `envconfig:"JUPYTER_REQUEST_TIMEOUT" default:"30s"`
	RetryMax      int           `envconfig:"JUPYTER_RETRY_MAX" default:"3"`
	RetryWaitMin  time.Duration `envconfig:"JUPYTER_RETRY_WAIT_MIN" default:"1s"`
	RetryWaitMax  time.Duration `envconfig:"JUPYTER_RETRY_WAIT_MAX" default:"30s"`
	RateLimitRPS  float64       `envconfig:"JUPYTER_RATE_LIMIT_RPS" default:"0"`
	BreakerEnable bool          `envconfig:"JUPYTER_BREAKER_ENABLED" default:"true"`
}

// PollConfig holds periodic reconciliation configuration.
type PollConfig struct {
	Interval time.Duration `envconfig:"JUPYTER_POLL_INTERVAL" default:"10s"`
	Enabled  bool          `envconfig:"JUPYTER_POLL_ENABLED" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8888",
		},
		Request: RequestConfig{
			Timeout:       30 * time.Second,
			RetryMax:      3,
			RetryWaitMin:  1 * time.Second,
			RetryWaitMax:  30 * time.Second,
			BreakerEnable: true,
		},
		Poll: PollConfig{
			Interval: 10 * time.Second,
			Enabled:  true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
