/*
Package main is the entry point for the moderated chat server.

It is responsible for loading configuration, initializing the global logging system,
connecting to PostgreSQL and running migrations, wiring the realtime hub, setting up
the HTTP server, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"modchat/internal/app/chat"
	"modchat/internal/app/db"
	"modchat/internal/app/store"
	"modchat/internal/configs"
	"modchat/internal/handler"
	"modchat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL and apply migrations
	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	defer pool.Close()

	appStore := store.New(pool)

	if cfg.AdminUsername != "" {
		if err := seedAdmin(ctx, appStore, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			logx.Fatal(err, "Failed to seed bootstrap admin account")
		}
		logx.Info("Bootstrap admin account ensured", "username", cfg.AdminUsername)
	}

	// Initialize the realtime hub (presence, moderation, delivery)
	hub := chat.NewHub(appStore, appStore)

	// Setup HTTP server and routes
	deps := &handler.AppDeps{
		Hub:    hub,
		Store:  appStore,
		Config: cfg,
	}
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("ModChat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}

// seedAdmin creates or restores the bootstrap admin account from configuration.
func seedAdmin(ctx context.Context, appStore *store.Store, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	return appStore.EnsureAdmin(ctx, username, string(hash))
}
