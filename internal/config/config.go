package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host      string  `yaml:"host"`
	Port      int     `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
	// AllowedOrigins are host patterns accepted on websocket upgrades in
	// addition to the server's own host, e.g. "app.example.com" or "*.example.com".
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// QueueConfig selects the broker carrying render requests and user notifications.
type QueueConfig struct {
	Driver         string        `yaml:"driver"`
	Addr           string        `yaml:"addr"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	ReportChannel  string        `yaml:"report_channel"`
	NotifyChannel  string        `yaml:"notify_channel"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

type RenderConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Embedded      bool          `yaml:"embedded"`
}

type CompletenessConfig struct {
	RequiredFields []string `yaml:"required_fields"`
}

type AuthConfig struct {
	UserHeader string `yaml:"user_header"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// TracingConfig enables OTLP/gRPC span export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Queue        QueueConfig        `yaml:"queue"`
	Render       RenderConfig       `yaml:"render"`
	Completeness CompletenessConfig `yaml:"completeness"`
	Auth         AuthConfig         `yaml:"auth"`
	Log          LogConfig          `yaml:"log"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Tracing      TracingConfig      `yaml:"tracing"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:  "127.0.0.1",
			Port:  8080,
			Burst: 20,
		},
		Database: DatabaseConfig{
			Path: "reportsuite.db",
		},
		Queue: QueueConfig{
			Driver:         "redis",
			Addr:           "127.0.0.1:6379",
			ReportChannel:  "report",
			NotifyChannel:  "notify_user",
			PublishTimeout: 5 * time.Second,
		},
		Render: RenderConfig{
			Timeout:       30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Completeness: CompletenessConfig{
			RequiredFields: []string{"title", "description", "rating", "measures"},
		},
		Auth: AuthConfig{
			UserHeader: "X-Forwarded-User",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			ServiceName: "reportsuite",
			SampleRatio: 1,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Queue.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown queue driver: %s", c.Queue.Driver)
	}
	if c.Queue.ReportChannel == "" || c.Queue.NotifyChannel == "" {
		return fmt.Errorf("queue channels must not be empty")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample_ratio must be between 0 and 1")
	}
	if c.Render.Timeout < 0 || c.Render.SweepInterval < 0 {
		return fmt.Errorf("render durations must not be negative")
	}
	return nil
}
