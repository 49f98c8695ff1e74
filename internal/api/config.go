package api

import "time"

// Config holds the API server settings.
type Config struct {
	// ListenAddr is the address the server listens on (e.g. ":5001").
	ListenAddr string

	// RateLimit is the sustained requests per second allowed per session.
	// Zero disables rate limiting.
	RateLimit float64
	Burst     int

	// SessionTimeout is the idle time after which a session is abandoned.
	SessionTimeout time.Duration

	// SweepInterval is how often idle sessions are collected. Zero
	// disables the background sweep.
	SweepInterval time.Duration
}
