package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/geoquiz/internal/api"
	"github.com/abhisek/geoquiz/internal/catalog"
	"github.com/abhisek/geoquiz/internal/config"
	"github.com/abhisek/geoquiz/internal/engine"
	"github.com/abhisek/geoquiz/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the quiz HTTP API",
	Long: `Run the quiz HTTP API.

The catalog is seeded into the database on start when the seed is newer
than the stored one. With --watch, edits to the seed file are loaded
without a restart.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String(config.Flags[config.FlagListen].Name, "", config.Flags[config.FlagListen].Description)
	f.String(config.Flags[config.FlagSeed].Name, "", config.Flags[config.FlagSeed].Description)
	f.Float64(config.Flags[config.FlagScaleFactor].Name, 0, config.Flags[config.FlagScaleFactor].Description)
	f.String(config.Flags[config.FlagTimeout].Name, "", config.Flags[config.FlagTimeout].Description)
	f.Bool("watch", false, "Reload the seed file when it changes")
}

func runServe(cmd *cobra.Command, _ []string) error {
	defer appLog.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	repo := st.CatalogRepo()
	seedPath := cfg.Storage.SeedPath
	if _, err := reseed(ctx, repo, seedPath, false); err != nil {
		return err
	}

	cache := catalog.NewCache(repo)
	if _, err := cache.Get(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	eng, err := engine.New(cache, engineConfig(cfg), appLog)
	if err != nil {
		return err
	}

	timeout, err := cfg.Session.TimeoutDuration()
	if err != nil {
		return err
	}
	srv := api.NewServer(api.Config{
		ListenAddr:     cfg.API.Listen,
		RateLimit:      cfg.API.RateLimit,
		Burst:          cfg.API.Burst,
		SessionTimeout: timeout,
		SweepInterval:  sweepInterval(timeout),
	}, api.Deps{
		Engine:   eng,
		Answers:  st.AnswerRepo(),
		Sessions: st.SessionRepo(),
		Catalog:  cache,
	}, appLog)

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		if seedPath == "" {
			return errors.New("--watch needs a seed file (--seed or storage.seed_path)")
		}
		go func() {
			err := watchFile(ctx, seedPath, func() {
				written, err := reseed(ctx, repo, seedPath, true)
				if err != nil {
					appLog.Warn("seed reload failed", zap.String("path", seedPath), zap.Error(err))
					return
				}
				if written {
					cache.Invalidate()
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				appLog.Warn("seed watcher stopped", zap.Error(err))
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		appLog.Info("shutting down", zap.Int("active_sessions", srv.ActiveSessions()))
		return srv.Shutdown()
	}
}

// reseed writes the seed at path (or the embedded one) into the catalog
// tables. It reports whether anything was written.
func reseed(ctx context.Context, repo *store.CatalogRepo, path string, force bool) (bool, error) {
	seed, err := loadSeed(path)
	if err != nil {
		return false, err
	}
	written, err := repo.Seed(ctx, seed, force)
	if err != nil {
		return false, fmt.Errorf("seed catalog: %w", err)
	}
	if written {
		appLog.Info("catalog seeded", zap.String("version", seed.Version), zap.String("path", path))
	} else {
		appLog.Debug("catalog up to date", zap.String("version", seed.Version))
	}
	return written, nil
}

// watchFile calls onChange whenever path is written or replaced. Editors
// that save by rename are handled by watching the parent directory.
func watchFile(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating seed watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching seed dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("seed watcher error: %w", err)
		}
	}
}
