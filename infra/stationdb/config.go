package stationdb

import (
	"fmt"
	"time"
)

// Config defines the station database connection.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver        string        `json:"driver"`
	DSN           string        `json:"dsn"`
	ReadTimeoutMS int           `json:"read_timeout_ms"`
	Breaker       BreakerConfig `json:"breaker"`
	// Migrate creates missing tables on open.
	Migrate *bool `json:"migrate"`
}

// BreakerConfig tunes the circuit breaker on reads.
type BreakerConfig struct {
	FailureThreshold uint32 `json:"failure_threshold"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
}

// SetDefaults applies defaults.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.DSN == "" && c.Driver == "sqlite" {
		c.DSN = "file:evreco.db?_pragma=busy_timeout(5000)"
	}
	if c.ReadTimeoutMS == 0 {
		c.ReadTimeoutMS = 2000
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.TimeoutSeconds == 0 {
		c.Breaker.TimeoutSeconds = 30
	}
	if c.Migrate == nil {
		m := true
		c.Migrate = &m
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if _, err := driverName(c.Driver); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("datasource: dsn is required")
	}
	if c.ReadTimeoutMS < 0 {
		return fmt.Errorf("datasource: read_timeout_ms must be >= 0")
	}
	return nil
}

// ReadTimeout returns the per-read deadline.
func (c Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

func driverName(driver string) (string, error) {
	switch driver {
	case "sqlite":
		return "sqlite", nil
	case "postgres", "pgx":
		return "pgx", nil
	}
	return "", fmt.Errorf("datasource: unknown driver %q", driver)
}
