package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibesnap/config"
	"vibesnap/config/database"
	"vibesnap/internal/prototype/repository"
	"vibesnap/pkg/logger"
	"vibesnap/router"
	"vibesnap/socket"
	"vibesnap/store"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load .env, then read the configuration from the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Pick the key-value store. Postgres is the default; memory is for local runs.
	var kv store.KV
	switch cfg.Store {
	case config.StorePostgres:
		db, err := database.Connect(ctx, cfg.DSN())
		if err != nil {
			logger.Sugar.Fatalf("Could not connect to database after retries: %v", err)
		}
		defer db.Close()

		if err := database.EnsureSchema(ctx, db); err != nil {
			logger.Sugar.Fatalf("Failed to create schema: %v", err)
		}
		kv = store.NewPostgresStore(db)
	default:
		logger.Sugar.Warn("Using in-memory store, state is lost on restart")
		kv = store.NewMemoryStore()
	}

	// 3. The hub keeps every open tab of a user in sync and autosaves drafts.
	hub := socket.NewHub(repository.NewPrototypeRepository(kv))
	go hub.Run(ctx)
	autosaved := make(chan struct{})
	go func() {
		defer close(autosaved)
		hub.AutosaveWorker(ctx, cfg.AutosaveInterval)
	}()

	// 4. Serve until SIGINT/SIGTERM.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Setup(kv, hub, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Sugar.Infof("VibeSnap backend listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Graceful shutdown failed: %v", err)
	}
	<-autosaved
}
