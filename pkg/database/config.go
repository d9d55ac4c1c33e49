package database

import (
	"fmt"
	"time"
)

// Config holds SQLite connection settings.
type Config struct {
	Path            string
	BusyTimeout     time.Duration
	MaxConnections  int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns settings suitable for a single-process deployment.
func DefaultConfig() *Config {
	return &Config{
		Path:            "./lectern.db",
		BusyTimeout:     5 * time.Second,
		MaxConnections:  10,
		ConnMaxLifetime: 30 * time.Second,
		ConnMaxIdleTime: 10 * time.Second,
	}
}

// DSN builds the SQLite connection string. WAL mode allows concurrent
// reads while route handlers write; foreign keys enforce the membership
// relations.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on",
		c.Path, c.BusyTimeout.Milliseconds())
}

// Validate checks the configuration before a connection is opened.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.BusyTimeout <= 0 {
		return fmt.Errorf("database busy timeout must be positive")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}
	return nil
}
