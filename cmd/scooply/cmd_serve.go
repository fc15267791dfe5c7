package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scooply/scooply/internal/ai"
	"github.com/scooply/scooply/internal/auth"
	"github.com/scooply/scooply/internal/config"
	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/server"
	"github.com/scooply/scooply/internal/storage"
	"github.com/scooply/scooply/internal/store"
)

// guestCartSweepInterval controls how often expired guest carts are purged.
const guestCartSweepInterval = time.Hour

// runServe boots the full API server and blocks until SIGINT/SIGTERM.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	if err := logging.Initialize(dataDir); err != nil {
		logger.Warn("Category logging disabled", zap.Error(err))
	}
	if err := logging.InitAudit(); err != nil {
		logger.Warn("Audit logging disabled", zap.Error(err))
	}
	defer logging.CloseAll()
	defer logging.CloseAudit()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reload debug categories when <data>/config.json changes.
	watcher, err := config.NewWatcher(dataDir)
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("Config watcher failed to start", zap.Error(err))
		}
		defer watcher.Stop()
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	verifier := auth.NewVerifier(
		cfg.Platform.BaseURL,
		cfg.Platform.ServiceRoleKey,
		cfg.GetVerifyTimeout(),
		cfg.GetAuthCacheTTL(),
	)

	deps := server.Deps{
		Store:    st,
		Verifier: verifier,
	}

	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		client, err := ai.NewGenAIClient(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.EmbeddingModel)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Embedder = client
		deps.Generator = client
		logger.Info("Gemini enabled",
			zap.String("model", cfg.AI.Model),
			zap.String("embedding_model", cfg.AI.EmbeddingModel))
	} else {
		logger.Info("Gemini disabled; search is keyword-only and analyze returns 503")
	}

	blobs, err := storage.NewBlobStore(cfg.Media.Dir, cfg.Server.PublicBaseURL, cfg.Media.MaxUploadSize)
	if err != nil {
		return err
	}
	deps.Blobs = blobs

	srv, err := server.New(cfg, deps)
	if err != nil {
		return err
	}

	go srv.Carts().RunGuestCartSweep(ctx, guestCartSweepInterval, cfg.GetGuestCartTTL())

	if deps.Embedder != nil {
		go func() {
			n, err := srv.Catalog().ReindexMissing(ctx)
			if err != nil {
				logger.Warn("Startup reindex failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("Reindexed products missing embeddings", zap.Int("count", n))
			}
		}()
	}

	logger.Info("Starting scooply",
		zap.String("addr", cfg.Server.Addr),
		zap.String("db", cfg.Database.Path))
	return srv.Run(ctx)
}

// runMigrate opens the store, which applies pending migrations, and exits.
func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return err
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info("Migrations applied", zap.String("db", cfg.Database.Path))
	return nil
}
