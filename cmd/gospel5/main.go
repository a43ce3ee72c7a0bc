package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gospel5/gospel5/internal/config"
	"github.com/gospel5/gospel5/internal/database"
	"github.com/gospel5/gospel5/internal/email"
	"github.com/gospel5/gospel5/internal/logging"
	"github.com/gospel5/gospel5/internal/server"
)

const (
	cleanupInterval    = time.Hour
	rateLimiterMaxIdle = 10 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(cfg.Email.PostmarkToken, cfg.Email.FromEmail, cfg.BaseURL)
	if !emailClient.Configured() {
		logger.Warn("email disabled: GOSPEL5_POSTMARK_TOKEN not set")
	}

	srv := server.New(db, cfg, emailClient, logger)

	// No WriteTimeout: websocket streams stay open indefinitely.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired sessions", "count", n)
				}
				if n, err := srv.LoginCodeStore().DeleteExpired(); err != nil {
					logger.Error("cleanup login codes", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up login codes", "count", n)
				}
				if n := srv.RateLimiter().Cleanup(rateLimiterMaxIdle); n > 0 {
					logger.Debug("cleaned up rate limiter", "count", n)
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("gospel5 starting", "addr", ":"+cfg.Port, "base_url", cfg.BaseURL, "timezone", cfg.Location.String())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
