package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hugh/bizops/internal/api"
	"github.com/hugh/bizops/internal/api/middleware"
	"github.com/hugh/bizops/internal/auth"
	"github.com/hugh/bizops/internal/database"
	"github.com/hugh/bizops/internal/jobs"
	"github.com/hugh/bizops/internal/storage"
	"github.com/hugh/bizops/pkg/config"
	"github.com/hugh/bizops/pkg/queue"
	"github.com/hugh/bizops/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
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

	logger.Info("starting bizops server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Redis backs the job queue and the permission cache. Without it the
	// server still runs; verification mails are then not sent.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	var enqueuer *jobs.Enqueuer
	if redisClient != nil {
		asynqClient := queue.NewClient(&cfg.Redis)
		defer asynqClient.Close()
		enqueuer = jobs.NewEnqueuer(asynqClient, logger)
	}

	blobs, err := storage.New(context.Background(), &cfg.Storage)
	if err != nil {
		logger.Error("failed to open blob store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	if closer, ok := blobs.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry()).
		WithChat(cfg.Chat.Issuer, cfg.Chat.TTL())
	verifier := auth.NewVerifier(cfg.JWT.Secret, cfg.Mail.AppURL, cfg.Mail.VerifyTTL())

	routerCfg := api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		Blobs:          blobs,
		StoragePath:    storagePath(cfg.Storage.BaseURL),
		Limiter:        middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	// A nil *jobs.Enqueuer must not be stored in the interface fields.
	if enqueuer != nil {
		routerCfg.AuthService = auth.NewService(db, jwtService, verifier, enqueuer, logger)
		routerCfg.Logins = enqueuer
	} else {
		routerCfg.AuthService = auth.NewService(db, jwtService, verifier, nil, logger)
	}
	router := api.NewRouter(routerCfg)

	scheduler := util.NewScheduler(logger)
	if err := scheduler.Add("rate-limit-sweep", "@every 1m", routerCfg.Limiter.Sweep); err != nil {
		logger.Error("failed to schedule job", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	<-scheduler.Stop().Done()

	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}

// storagePath is the URL path local blobs are served under.
func storagePath(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Path == "" {
		return "/storage"
	}
	return u.Path
}
