package common

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/flashbots/ppcalc/generator"
	"github.com/flashbots/ppcalc/store"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration of the ppcalc commands.
//
//	log_level: info
//	log_json: false
//	server:
//	  http_addr: ":8080"
//	  metrics_addr: ":9090"
//	  cors_origins: ["*"]
//	  drain_duration: 5s
//	analysis:
//	  workers: 0
//	  min_window_ms: 0
//	  max_window_ms: 1000
//	postgres:
//	  dsn: "postgres://ppcalc@localhost/ppcalc?sslmode=disable"
//	generator:
//	  destination_selection: uniform
//	  source_imd: "normal:100:10"
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	Server    ServerConfig         `yaml:"server"`
	Analysis  AnalysisConfig       `yaml:"analysis"`
	Postgres  store.PostgresConfig `yaml:"postgres"`
	Generator generator.Config     `yaml:"generator"`
}

// ServerConfig configures the HTTP analysis service.
type ServerConfig struct {
	HTTPAddr                 string        `yaml:"http_addr"`
	MetricsAddr              string        `yaml:"metrics_addr"`
	EnablePprof              bool          `yaml:"enable_pprof"`
	CORSOrigins              []string      `yaml:"cors_origins"`
	DrainDuration            time.Duration `yaml:"drain_duration"`
	GracefulShutdownDuration time.Duration `yaml:"graceful_shutdown_duration"`
	ReadTimeout              time.Duration `yaml:"read_timeout"`
	WriteTimeout             time.Duration `yaml:"write_timeout"`
}

// AnalysisConfig holds the analysis defaults and limits.
type AnalysisConfig struct {
	// Workers bounds concurrent pruning. Zero means GOMAXPROCS.
	Workers     int   `yaml:"workers"`
	MinWindowMs int64 `yaml:"min_window_ms"`
	MaxWindowMs int64 `yaml:"max_window_ms"`

	// MaxBodyBytes limits uploaded traces in the service.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// MaxGeneratedMessages limits traces simulated by the service.
	MaxGeneratedMessages float64 `yaml:"max_generated_messages"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			HTTPAddr:                 ":8080",
			MetricsAddr:              ":9090",
			DrainDuration:            5 * time.Second,
			GracefulShutdownDuration: 30 * time.Second,
			ReadTimeout:              60 * time.Second,
			WriteTimeout:             5 * time.Minute,
		},
		Analysis: AnalysisConfig{
			MinWindowMs:          0,
			MaxWindowMs:          1000,
			MaxBodyBytes:         256 << 20,
			MaxGeneratedMessages: 1_000_000,
		},
		Generator: generator.Config{
			Sources:      100,
			Destinations: 10,
			Selection:    generator.SelectUniform,
			SourceIMD:    generator.MustParseDistribution("normal:1000:100"),
			SourceWait:   generator.MustParseDistribution("uniform:0:1000"),
			NumMessages:  generator.MustParseDistribution("constant:10"),
			NetworkDelay: generator.MustParseDistribution("uniform:50:500"),
		},
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the parts of the configuration every command relies on.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.AnalysisWindow(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if c.Analysis.Workers < 0 {
		return errors.New("analysis: workers must not be negative")
	}
	if c.Analysis.MaxBodyBytes <= 0 {
		return errors.New("analysis: max_body_bytes must be positive")
	}
	return nil
}

// ValidateServer additionally checks the service settings.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.HTTPAddr == "" {
		return errors.New("server: http_addr is required (via --addr or config file)")
	}
	if c.Server.MetricsAddr != "" && c.Server.MetricsAddr == c.Server.HTTPAddr {
		return errors.New("server: metrics_addr must differ from http_addr")
	}
	return nil
}
