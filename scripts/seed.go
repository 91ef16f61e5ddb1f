//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hugh/bizops/internal/auth"
	"github.com/hugh/bizops/internal/database"
	"github.com/hugh/bizops/internal/database/models"
	"github.com/hugh/bizops/pkg/config"
	"github.com/hugh/bizops/pkg/util"
	"github.com/joho/godotenv"
)

// Creates a verified organization root for local development.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	verifier := auth.NewVerifier(cfg.JWT.Secret, cfg.Mail.AppURL, cfg.Mail.VerifyTTL())
	authService := auth.NewService(db, jwtService, verifier, nil, logger)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "admin123!"
	}
	if name == "" {
		name = "Admin"
	}

	ctx := context.Background()
	user, err := authService.Register(ctx, auth.RegisterInput{
		Email:    email,
		Password: password,
		Name:     name,
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Update("email_verified_at", time.Now()).Error; err != nil {
		log.Fatalf("failed to verify admin user: %v", err)
	}

	resp, err := authService.Login(ctx, auth.LoginInput{Email: email, Password: password})
	if err != nil {
		log.Fatalf("failed to log in as admin: %v", err)
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	fmt.Printf("Organization: %s\n", resp.User.ID)
	fmt.Printf("Token: %s\n", resp.Token)
}
