package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for a mining worker.
type Config struct {
	// Ledger service
	LedgerHost string `mapstructure:"ledger-host"`
	LedgerPort int    `mapstructure:"ledger-port"`

	// Mining
	Difficulty      int           `mapstructure:"difficulty"`
	ParallelWorkers int           `mapstructure:"workers"`
	PollInterval    time.Duration `mapstructure:"poll-interval"`

	// Submission
	MaxRetries int           `mapstructure:"max-retries"`
	RetryDelay time.Duration `mapstructure:"retry-delay"`

	// Status server (0 disables)
	StatusPort int `mapstructure:"status-port"`

	// Storage
	DataDir string `mapstructure:"data-dir"`

	// Logging
	LogLevel string `mapstructure:"log-level"`
}

// DefaultConfig returns a Config with sensible defaults for a local ledger.
func DefaultConfig() *Config {
	return &Config{
		LedgerHost: "127.0.0.1",
		LedgerPort: 3000,

		Difficulty:      4,
		ParallelWorkers: 4,
		PollInterval:    10 * time.Second,

		MaxRetries: 3,
		RetryDelay: 12 * time.Second,

		StatusPort: 8081,

		DataDir: ".miner",

		LogLevel: "info",
	}
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.LedgerHost == "" {
		return fmt.Errorf("ledger-host is required")
	}
	if c.LedgerPort <= 0 || c.LedgerPort > 65535 {
		return fmt.Errorf("ledger-port must be 1-65535")
	}
	if c.Difficulty < 0 || c.Difficulty > 64 {
		return fmt.Errorf("difficulty must be 0-64 (leading hex zeros of a sha256 digest)")
	}
	if c.ParallelWorkers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll-interval must be at least 1s")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry-delay must not be negative")
	}
	if c.StatusPort < 0 || c.StatusPort > 65535 {
		return fmt.Errorf("status-port must be 0-65535")
	}
	return nil
}

// LedgerURL returns the base URL of the ledger service.
func (c *Config) LedgerURL() string {
	return fmt.Sprintf("http://%s:%d", c.LedgerHost, c.LedgerPort)
}
