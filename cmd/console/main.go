package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/knowledge-capture/console/internal/app"
	"github.com/knowledge-capture/console/internal/metrics"
	"github.com/knowledge-capture/console/internal/server"
	"github.com/knowledge-capture/console/pkg/config"
	appLogger "github.com/knowledge-capture/console/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("KBCONSOLE_CONFIG_FILE"))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.InitWithOptions(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath, appLogger.Options{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting knowledge base console gateway",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("identity", cfg.Identity.Email),
	)

	metrics.Init()

	console, err := app.New(cfg, nil)
	if err != nil {
		appLogger.Fatal("Failed to wire console", zap.Error(err))
	}

	// The knowledge base view starts with a listing.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Backend.Timeout())
		defer cancel()
		if err := console.Upload.Refresh(ctx); err != nil {
			appLogger.Warn("Initial listing failed", zap.Error(err))
		}
	}()

	srv := server.New(console)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := srv.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	done := make(chan struct{})
	go func() {
		if err := srv.Shutdown(); err != nil {
			appLogger.Error("Shutdown failed", zap.Error(err))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		appLogger.Warn("Shutdown timed out")
	}
	appLogger.Info("Server stopped")
}
