package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag ties a CLI flag to a config key so commands sharing a setting
// register it the same way.
type Flag struct {
	Name        string
	ViperKey    string
	Description string
}

// Flag registry keys.
const (
	FlagDB          = "db"
	FlagSeed        = "seed"
	FlagListen      = "listen"
	FlagDebug       = "debug"
	FlagScaleFactor = "scale-factor"
	FlagTimeout     = "session-timeout"
)

// Flags is the registry of flags that map onto config keys.
var Flags = map[string]Flag{
	FlagDB:          {Name: "db", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database file (overrides GEOQUIZ_DB)"},
	FlagSeed:        {Name: "seed", ViperKey: "storage.seed_path", Description: "Catalog seed file (default: embedded catalog)"},
	FlagListen:      {Name: "listen", ViperKey: "api.listen", Description: "Address for the HTTP API to listen on"},
	FlagDebug:       {Name: "debug", ViperKey: "log.debug", Description: "Enable debug logging"},
	FlagScaleFactor: {Name: "scale-factor", ViperKey: "engine.scale_factor", Description: "Weight of linked theorem mass in question scoring"},
	FlagTimeout:     {Name: "session-timeout", ViperKey: "session.timeout", Description: "Idle time before a session is abandoned"},
}

// BindFlags binds the registered flags present on cmd to v. Call it after
// InitViper so flags take precedence over env, file and defaults. Only
// flags the user actually set override lower layers.
func BindFlags(v *viper.Viper, cmd *cobra.Command, keys ...string) error {
	for _, key := range keys {
		def, ok := Flags[key]
		if !ok {
			continue
		}
		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(def.ViperKey, f); err != nil {
			return err
		}
	}
	return nil
}
