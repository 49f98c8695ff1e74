package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	configFile = "config.toml"

	// CurrentV is the supported config file version.
	CurrentV = 0
)

// ResolveDir returns the config directory in priority order:
// 1. override, when non-empty
// 2. GEOQUIZ_CONFIG_DIR environment variable
// 3. $XDG_CONFIG_HOME/geoquiz
// 4. ~/.config/geoquiz
func ResolveDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if d := os.Getenv("GEOQUIZ_CONFIG_DIR"); d != "" {
		return d, nil
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "geoquiz"), nil
}

// Path returns the config.toml path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, configFile)
}

// ErrExists is returned by Save when the file exists and overwrite is off.
var ErrExists = errors.New("config file already exists")

// Save writes cfg as TOML to config.toml in dir, creating dir if needed.
func Save(dir string, cfg *Config, overwrite bool) (string, error) {
	if cfg == nil {
		return "", errors.New("cannot save nil config")
	}
	path := Path(dir)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}
	return path, nil
}

// Parse decodes a config.toml document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}
	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return cfg, nil
}
