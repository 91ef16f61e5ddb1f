package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/hugh/bizops/internal/auth"
	"github.com/hugh/bizops/internal/database"
	"github.com/hugh/bizops/internal/jobs"
	"github.com/hugh/bizops/pkg/config"
	"github.com/hugh/bizops/pkg/queue"
	"github.com/hugh/bizops/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting bizops worker")

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	srv := queue.NewServer(&cfg.Redis, 10)

	// Links must be signed with the same secret and base URL as the server's.
	verifier := auth.NewVerifier(cfg.JWT.Secret, cfg.Mail.AppURL, cfg.Mail.VerifyTTL())
	handler := jobs.NewHandler(db, verifier, jobs.NewLogMailer(logger), cfg.Mail.From, logger)

	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	<-ctx.Done()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
