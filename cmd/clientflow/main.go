package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clientflow/internal/app"
	"clientflow/internal/config"
	"clientflow/internal/logging"
	"clientflow/internal/services"
)

func main() {
	// 1. Load configuration
	cfg := config.LoadConfig()

	// 2. Initialize logging
	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Shutdown()

	logger := slog.Default()
	logger.Info("Starting clientflow workflow engine")

	// 3. Build the application. The standalone binary runs with dev
	// collaborators for the subsystems the surrounding platform normally
	// provides; real deployments embed this core and wire their own.
	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collab := app.Collaborators{
		Email:    &services.DevEmailService{Logger: logger},
		Audit:    &services.DevAuditLogger{Logger: logger},
		Tasks:    &services.DevTaskService{Logger: logger},
		Webhooks: &services.DevWebhookSender{Logger: logger},
		Notifier: &services.DevNotifier{Logger: logger},
	}

	mgr, err := app.NewManager(initCtx, cfg, collab, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	// 4. Start background jobs
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := mgr.Start(runCtx); err != nil {
		logger.Error("Failed to start", "error", err)
		os.Exit(1)
	}

	// 5. Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down")
	stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
		os.Exit(1)
	}
}
