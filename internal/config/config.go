// Package config loads bandkeeper settings from BANDKEEPER_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage selects and configures the durable backend.
type Storage struct {
	Driver      string `env:"BANDKEEPER_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"BANDKEEPER_SQLITE_PATH" envDefault:"bandkeeper.db"`
	PostgresDSN string `env:"BANDKEEPER_POSTGRES_DSN" envDefault:"postgres://localhost/bandkeeper?sslmode=disable"`
	SeedFile    string `env:"BANDKEEPER_SEED_FILE"`
}

// Blob configures the export archive.
type Blob struct {
	Driver      string `env:"BANDKEEPER_BLOB_DRIVER" envDefault:"fs"`
	FSRoot      string `env:"BANDKEEPER_BLOB_FS_ROOT" envDefault:"./blobdata"`
	S3Bucket    string `env:"BANDKEEPER_BLOB_S3_BUCKET"`
	S3Region    string `env:"BANDKEEPER_BLOB_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"BANDKEEPER_BLOB_S3_ENDPOINT"`
	S3PathStyle bool   `env:"BANDKEEPER_BLOB_S3_PATH_STYLE" envDefault:"false"`
}

// Events configures the change feed. An empty broker list disables Kafka.
type Events struct {
	KafkaBrokers []string `env:"BANDKEEPER_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"BANDKEEPER_KAFKA_TOPIC" envDefault:"bandkeeper.changes"`
}

// Telemetry configures tracing and logging.
type Telemetry struct {
	OTLPEndpoint string `env:"BANDKEEPER_OTEL_ENDPOINT"`
	TraceFile    string `env:"BANDKEEPER_TRACE_FILE"`
	LogLevel     string `env:"BANDKEEPER_LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"BANDKEEPER_LOG_FORMAT" envDefault:"text"`
}

// Config is the complete server configuration.
type Config struct {
	ListenAddr       string        `env:"BANDKEEPER_LISTEN_ADDR" envDefault:":8080"`
	ShutdownTimeout  time.Duration `env:"BANDKEEPER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ExtendedCommands []string      `env:"BANDKEEPER_EXTENDED_COMMANDS" envSeparator:","`

	Storage   Storage
	Blob      Blob
	Events    Events
	Telemetry Telemetry
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and incomplete driver settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("BANDKEEPER_BLOB_S3_BUCKET required for s3 blob driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if _, err := ParseLevel(c.Telemetry.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.Telemetry.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Telemetry.LogFormat)
	}
	return nil
}

// ParseLevel maps a level name onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
