package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/sekolah/school-api/docs" // swagger docs

	"github.com/sekolah/school-api/internal/auth"
	"github.com/sekolah/school-api/internal/config"
	"github.com/sekolah/school-api/internal/db"
	"github.com/sekolah/school-api/internal/handler"
	"github.com/sekolah/school-api/internal/repository"
	"github.com/sekolah/school-api/internal/service"
	"github.com/sekolah/school-api/internal/storage"
)

// @title           School API
// @version         1.0
// @description     Backend for the school website: news management, graduation checks and the school profile.

// @contact.name   School IT Team

// @host      localhost:5000
// @BasePath  /

// @schemes http https

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

const (
	defaultAdminPassword = "admin123"
	imagePublicPrefix    = "/api/news/images/"
)

func main() {
	// Setup logger
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	logger.Info("connecting to database", "host", cfg.DB.Host, "name", cfg.DB.Name)
	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(cfg.DB.MigrateURL(), logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	newsRepo := repository.NewNewsRepository(database.Pool)
	userRepo := repository.NewUserRepository(database.Pool)
	studentRepo := repository.NewStudentRepository(database.Pool)
	schoolRepo := repository.NewSchoolRepository(database.Pool)

	// Image storage
	store, err := storage.NewLocalStore(cfg.Upload.Dir, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	images, err := storage.NewImageManager(store, cfg.Upload.TempDir, cfg.Upload.MaxBytes, imagePublicPrefix)
	if err != nil {
		logger.Error("failed to initialize image manager", "error", err)
		os.Exit(1)
	}

	// Initialize services
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(userRepo, tokens, logger)
	services := handler.Services{
		News:     service.NewNewsService(newsRepo, images, logger),
		Auth:     authService,
		Students: service.NewStudentService(studentRepo, logger),
		School:   service.NewSchoolService(schoolRepo, logger),
	}

	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Error("failed to bootstrap admin user", "error", err)
		os.Exit(1)
	}
	if cfg.Auth.AdminPassword == defaultAdminPassword {
		logger.Warn("admin account uses the default password, set ADMIN_PASSWORD")
	}

	// Initialize HTTP handler
	h := handler.New(services, images, database, cfg.Server, logger)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
