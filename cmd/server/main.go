package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docshare/internal/server/api"
	"docshare/internal/server/config"
	"docshare/internal/server/database"
	"docshare/internal/server/notify"
	"docshare/internal/server/service"
	"docshare/internal/server/storage"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"storage_path", cfg.StoragePath,
		"max_file_size", cfg.MaxFileSize,
		"session_ttl", cfg.SessionTTL,
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations complete")

	// Initialize blob storage
	blobs := storage.NewFileSystemStore(cfg.StoragePath)
	if err := blobs.EnsureDir(); err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	slog.Info("blob storage initialized", "path", cfg.StoragePath)

	// Initialize repositories and services
	users := database.NewUserRepository(db)
	sessions := database.NewSessionRepository(db)
	documents := database.NewDocumentRepository(db)
	indexRepo := database.NewIndexRepository(db)

	auth := service.NewAuthService(users, sessions, cfg.SessionTTL)
	index := service.NewIndexBuilder(documents, indexRepo, cfg.BaseURL)
	docs := service.NewDocumentService(documents, index, blobs, cfg)
	mailer := notify.NewMailer(cfg)
	if !mailer.Configured() {
		slog.Warn("smtp not configured, contact form delivery disabled")
	}

	// Start session cleanup
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	cleanup := service.NewSessionCleanup(sessions, cfg.CleanupInterval)
	cleanup.Start(cleanupCtx)

	// Setup HTTP router
	handler := api.NewHandler(auth, docs, index, mailer, db)
	e := api.SetupRouter(handler, auth, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop session cleanup
	cleanupCancel()
	cleanup.Wait()

	slog.Info("server exited cleanly")
}
