// Package config resolves geoquiz settings from flags, environment,
// config.toml and built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the persistent configuration stored as config.toml.
type Config struct {
	Version int           `toml:"version"`
	Storage StorageConfig `toml:"storage"`
	API     APIConfig     `toml:"api"`
	Engine  EngineConfig  `toml:"engine"`
	Session SessionConfig `toml:"session"`
	Log     LogConfig     `toml:"log"`
}

// StorageConfig holds database and catalog seed settings.
type StorageConfig struct {
	// SQLitePath is the database file. Empty means the default data dir.
	SQLitePath string `toml:"sqlite_path,omitempty"`

	// SeedPath is a catalog seed file. Empty means the embedded catalog.
	SeedPath string `toml:"seed_path,omitempty"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`

	// RateLimit is the sustained requests per second allowed per session.
	RateLimit float64 `toml:"rate_limit,omitempty"`
	Burst     int     `toml:"burst,omitempty"`
}

// EngineConfig holds the inference constants.
type EngineConfig struct {
	ScaleFactor      float64 `toml:"scale_factor"`
	BoostFactor      float64 `toml:"boost_factor"`
	TheoremFloor     float64 `toml:"theorem_floor"`
	TheoremThreshold float64 `toml:"theorem_threshold"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	// Timeout is a Go duration string such as "30m".
	Timeout    string `toml:"timeout"`
	ResumeCode int    `toml:"resume_code"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Debug bool `toml:"debug"`
}

// TimeoutDuration parses Timeout.
func (s SessionConfig) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid session.timeout %q: %w", s.Timeout, err)
	}
	return d, nil
}
