package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/geoquiz/internal/catalog"
	"github.com/abhisek/geoquiz/internal/config"
	"github.com/abhisek/geoquiz/internal/engine"
	"github.com/abhisek/geoquiz/internal/logger"
	"github.com/abhisek/geoquiz/internal/store"
)

var rootCmd = &cobra.Command{
	Use:               "geoquiz",
	Short:             "Adaptive triangle quiz engine",
	Long:              "geoquiz asks questions to work out which kind of triangle a learner is studying and recommends the theorems that fit it.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Resolved once per invocation by loadConfig.
var (
	cfg    *config.Config
	appLog = zap.NewNop()
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String(config.Flags[config.FlagDB].Name, "", config.Flags[config.FlagDB].Description)
	rootCmd.PersistentFlags().Bool(config.Flags[config.FlagDebug].Name, false, config.Flags[config.FlagDebug].Description)
	rootCmd.PersistentFlags().String("config", "", "Config directory (overrides GEOQUIZ_CONFIG_DIR)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves flags, environment, config.toml and defaults into cfg
// and builds the logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("config")
	v, err := config.InitViper(dir)
	if err != nil {
		return err
	}
	err = config.BindFlags(v, cmd,
		config.FlagDB, config.FlagDebug, config.FlagSeed,
		config.FlagListen, config.FlagScaleFactor, config.FlagTimeout)
	if err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	c, err := config.FromViper(v)
	if err != nil {
		return err
	}
	cfg = c
	appLog = logger.New(cfg.Log.Debug)
	return nil
}

// resolveDBPath returns the configured database path (--db flag, config
// or GEOQUIZ_STORAGE_SQLITE_PATH), then GEOQUIZ_DB, then the default XDG
// path.
func resolveDBPath() (string, error) {
	if p := cfg.Storage.SQLitePath; p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

func openStore() (*store.Store, error) {
	dbPath, err := resolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	appLog.Debug("store opened", zap.String("path", dbPath))
	return st, nil
}

// loadSeed reads the seed file at path, or the embedded catalog when path
// is empty.
func loadSeed(path string) (*catalog.Seed, error) {
	if path == "" {
		return catalog.DefaultSeed()
	}
	return catalog.ReadSeedFile(path)
}

func engineConfig(c *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.ScaleFactor = c.Engine.ScaleFactor
	ec.BoostFactor = c.Engine.BoostFactor
	ec.TheoremFloor = c.Engine.TheoremFloor
	ec.Threshold = c.Engine.TheoremThreshold
	ec.ResumeCode = c.Session.ResumeCode
	return ec
}

// sweepInterval is how often idle sessions are collected for a timeout.
func sweepInterval(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return max(timeout/4, time.Second)
}
