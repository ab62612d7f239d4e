package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`

	Compliance ComplianceConfig `koanf:"compliance"`
	Session    SessionConfig    `koanf:"session"`
	Memory     MemoryConfig     `koanf:"memory"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimit caps requests per second across the API. Zero disables it.
	RateLimit      float64 `koanf:"rate_limit"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

type DatabaseConfig struct {
	// URL enables the durable report archive when set.
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	// URL switches session storage from in-process to Redis when set.
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type ComplianceConfig struct {
	// Regulations is the monitored regulation set.
	Regulations []string `koanf:"regulations"`

	// PollingInterval is the continuous monitoring cadence.
	PollingInterval time.Duration `koanf:"polling_interval"`

	// StageTimeout bounds each pipeline stage. Zero disables it.
	StageTimeout time.Duration `koanf:"stage_timeout"`

	// FetchRateLimit throttles outbound regulation fetches, per second.
	FetchRateLimit int `koanf:"fetch_rate_limit"`
}

type SessionConfig struct {
	Timeout      time.Duration `koanf:"timeout"`
	ReapInterval time.Duration `koanf:"reap_interval"`
	HistoryLimit int           `koanf:"history_limit"`
}

type MemoryConfig struct {
	MaxEntries int `koanf:"max_entries"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit:       100,
			RateLimitBurst:  200,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Compliance: ComplianceConfig{
			Regulations:     []string{"GDPR", "HIPAA", "SOX"},
			PollingInterval: time.Hour,
			StageTimeout:    2 * time.Minute,
			FetchRateLimit:  10,
		},
		Session: SessionConfig{
			Timeout:      60 * time.Minute,
			ReapInterval: 5 * time.Minute,
			HistoryLimit: 1000,
		},
		Memory: MemoryConfig{
			MaxEntries: 10000,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			SamplingRate: 1.0,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional.
	if err := k.Load(file.Provider("configs/config.yaml"), yaml.Parser()); err != nil {
		_ = err
	}

	if err := k.Load(env.Provider("CGB_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CGB_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
