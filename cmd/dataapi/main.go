package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tomyedwab/dataapi/config"
	"github.com/tomyedwab/dataapi/dataapi/backend"
	"github.com/tomyedwab/dataapi/dataapi/executor"
	"github.com/tomyedwab/dataapi/dataapi/server"
	"github.com/tomyedwab/dataapi/dataapi/txregistry"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.LogLevelValue()

	// 2. Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("Starting Data API", "driver", cfg.Driver, "addr", cfg.ListenAddr())

	// 3. Connect to the database
	db, err := backend.Open(cfg.Driver, cfg.DSN(), logger)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Ping(ctx); err != nil {
		logger.Error("Failed to reach database", "error", err)
		os.Exit(1)
	}

	// 4. Wire the registry, executor and HTTP server
	registry := txregistry.New(db, logger)
	srv := server.New(server.Config{
		Addr:         cfg.ListenAddr(),
		ResourceARN:  cfg.ResourceARN,
		SecretARN:    cfg.SecretARN,
		MaxBodyBytes: cfg.JSONLimit,
		Logger:       logger,
	}, executor.New(db, registry, logger))

	// 5. Serve until a signal arrives, then drain
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down Data API")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server did not shut down cleanly", "error", err)
		}
		return registry.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Data API stopped with error", "error", err)
		db.Close()
		os.Exit(1)
	}
	logger.Info("Data API stopped")
}
