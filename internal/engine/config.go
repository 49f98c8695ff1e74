package engine

import (
	"fmt"
	"math/rand/v2"

	"github.com/abhisek/geoquiz/internal/belief"
	"github.com/abhisek/geoquiz/internal/session"
)

// Config holds the tunable constants of the engine.
type Config struct {
	// ScaleFactor multiplies the summed theorem weight of a candidate
	// question when scoring it.
	ScaleFactor float64

	// BoostFactor multiplies a theorem's weight when a free-text answer
	// matches one of its keywords.
	BoostFactor float64

	// TheoremFloor is the initial weight of every active theorem.
	TheoremFloor float64

	// Threshold is the default recommendation threshold.
	Threshold float64

	// ResumeCode is the feedback code that cancels finishing a session.
	ResumeCode int

	// IntN returns a uniform random int in [0, n). Used to pick the
	// opening question.
	IntN func(n int) int
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		ScaleFactor:  10,
		BoostFactor:  1.5,
		TheoremFloor: belief.DefaultTheoremFloor,
		Threshold:    0.01,
		ResumeCode:   session.DefaultResumeCode,
		IntN:         rand.IntN,
	}
}

// Validate checks that the configuration keeps belief invariants intact.
func (c Config) Validate() error {
	if c.ScaleFactor < 0 {
		return fmt.Errorf("scale factor must be non-negative, got %v", c.ScaleFactor)
	}
	if c.BoostFactor < 1 {
		return fmt.Errorf("boost factor must be at least 1, got %v", c.BoostFactor)
	}
	if c.TheoremFloor <= 0 || c.TheoremFloor > belief.MaxTheoremWeight {
		return fmt.Errorf("theorem floor must be in (0, 1], got %v", c.TheoremFloor)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %v", c.Threshold)
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.IntN == nil {
		c.IntN = def.IntN
	}
	if c.ResumeCode == 0 {
		c.ResumeCode = def.ResumeCode
	}
	return c
}
