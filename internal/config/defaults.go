package config

const (
	defaultAPIListen = ":5001"
	defaultRateLimit = 5.0
	defaultBurst     = 10

	defaultScaleFactor      = 10.0
	defaultBoostFactor      = 1.5
	defaultTheoremFloor     = 0.01
	defaultTheoremThreshold = 0.01

	defaultSessionTimeout = "30m"
	defaultResumeCode     = 7
)

// NewDefaultConfig returns a Config with every default filled in. It is the
// single source of default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen:    defaultAPIListen,
			RateLimit: defaultRateLimit,
			Burst:     defaultBurst,
		},
		Engine: EngineConfig{
			ScaleFactor:      defaultScaleFactor,
			BoostFactor:      defaultBoostFactor,
			TheoremFloor:     defaultTheoremFloor,
			TheoremThreshold: defaultTheoremThreshold,
		},
		Session: SessionConfig{
			Timeout:    defaultSessionTimeout,
			ResumeCode: defaultResumeCode,
		},
	}
}
