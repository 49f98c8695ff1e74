package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper returns a viper instance with defaults registered, config.toml
// read from configDir (or the default config dir) if present, and GEOQUIZ_
// environment variables bound.
//
// Precedence, highest first:
//  1. CLI flags bound with BindFlags
//  2. Environment (GEOQUIZ_API_LISTEN, GEOQUIZ_ENGINE_SCALE_FACTOR, ...)
//  3. config.toml
//  4. NewDefaultConfig
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	dir, err := ResolveDir(configDir)
	if err != nil {
		return nil, err
	}
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("GEOQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.seed_path", d.Storage.SeedPath)

	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.rate_limit", d.API.RateLimit)
	v.SetDefault("api.burst", d.API.Burst)

	v.SetDefault("engine.scale_factor", d.Engine.ScaleFactor)
	v.SetDefault("engine.boost_factor", d.Engine.BoostFactor)
	v.SetDefault("engine.theorem_floor", d.Engine.TheoremFloor)
	v.SetDefault("engine.theorem_threshold", d.Engine.TheoremThreshold)

	v.SetDefault("session.timeout", d.Session.Timeout)
	v.SetDefault("session.resume_code", d.Session.ResumeCode)

	v.SetDefault("log.debug", d.Log.Debug)
}

// FromViper reads the effective configuration out of v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			SQLitePath: v.GetString("storage.sqlite_path"),
			SeedPath:   v.GetString("storage.seed_path"),
		},
		API: APIConfig{
			Listen:    v.GetString("api.listen"),
			RateLimit: v.GetFloat64("api.rate_limit"),
			Burst:     v.GetInt("api.burst"),
		},
		Engine: EngineConfig{
			ScaleFactor:      v.GetFloat64("engine.scale_factor"),
			BoostFactor:      v.GetFloat64("engine.boost_factor"),
			TheoremFloor:     v.GetFloat64("engine.theorem_floor"),
			TheoremThreshold: v.GetFloat64("engine.theorem_threshold"),
		},
		Session: SessionConfig{
			Timeout:    v.GetString("session.timeout"),
			ResumeCode: v.GetInt("session.resume_code"),
		},
		Log: LogConfig{
			Debug: v.GetBool("log.debug"),
		},
	}
	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	if _, err := cfg.Session.TimeoutDuration(); err != nil {
		return nil, err
	}
	return cfg, nil
}
