package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/medikit/prescriptor-api/catalogsync"
	"github.com/medikit/prescriptor-api/config"
	"github.com/medikit/prescriptor-api/finance"
	"github.com/medikit/prescriptor-api/health"
	"github.com/medikit/prescriptor-api/learning"
	"github.com/medikit/prescriptor-api/logging"
	"github.com/medikit/prescriptor-api/prescribing"
	"github.com/medikit/prescriptor-api/scheduler"
	"github.com/medikit/prescriptor-api/search"
	"github.com/medikit/prescriptor-api/server"
	"github.com/medikit/prescriptor-api/store"
)

func main() {
	// Read the env variables; a missing .env file is fine, the config
	// layer has defaults for everything.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogDir)
	defer logging.Shutdown()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logging.Error("Failed to create data directory", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "prescriptor.db"))
	if err != nil {
		logging.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	syncer := catalogsync.NewEngine(st, catalogsync.NewClient(cfg.SnapshotBaseURL))
	learner := learning.NewEngine(st)

	sched := scheduler.NewScheduler(st, syncer, cfg.SyncAt)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	srv := server.NewServer(cfg, server.Deps{
		Searcher:    search.NewService(st),
		Learner:     learner,
		Syncer:      syncer,
		Health:      health.NewChecker(st, sched.Syncing(), cfg.SyncAt),
		Prescribing: prescribing.NewService(st, learner),
		Finance:     finance.NewService(st),
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", "error", err)
	}
}
