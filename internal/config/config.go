package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration settings for the workflow engine
type Config struct {
	// API Server
	APIHost     string
	APIPort     int
	LogLevel    string
	Environment string

	// Engine
	MaxContextBytes int
	ScriptDir       string

	// Server
	MaxClients      int
	ShutdownTimeout time.Duration
}

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultMaxContextBytes = 1 << 20
	MaxContextBytesLimit   = 64 << 20

	DefaultMaxClients = 256
	MaxClientsLimit   = 65536

	DefaultShutdownTimeout = 10 * time.Second
)

var (
	ErrInvalidAPIPort         = errors.New("invalid API port")
	ErrInvalidMaxContextBytes = errors.New(
		"max context bytes must be positive",
	)
	ErrInvalidMaxClients      = errors.New("max clients must be positive")
	ErrInvalidShutdownTimeout = errors.New(
		"shutdown timeout must be positive",
	)
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// server and engine settings
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:         DefaultAPIHost,
		APIPort:         DefaultAPIPort,
		LogLevel:        "info",
		Environment:     "development",
		MaxContextBytes: DefaultMaxContextBytes,
		MaxClients:      DefaultMaxClients,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	if apiHost := os.Getenv("FLUME_API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("FLUME_LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if environment := os.Getenv("FLUME_ENV"); environment != "" {
		c.Environment = environment
	}
	if scriptDir := os.Getenv("FLUME_SCRIPT_DIR"); scriptDir != "" {
		c.ScriptDir = scriptDir
	}

	if err := loadEnvInt(
		"FLUME_API_PORT", &c.APIPort, 0, MaxTCPPort,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"FLUME_MAX_CONTEXT_BYTES", &c.MaxContextBytes, 0,
		MaxContextBytesLimit,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"FLUME_MAX_CLIENTS", &c.MaxClients, 0, MaxClientsLimit,
	); err != nil {
		return err
	}

	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.MaxContextBytes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxContextBytes,
			c.MaxContextBytes)
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxClients, c.MaxClients)
	}
	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}
	return nil
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
