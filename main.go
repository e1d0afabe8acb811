package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	database "github.com/streamhub-io/streamhub/app/db"
	appLogger "github.com/streamhub-io/streamhub/app/logger"
	"github.com/streamhub-io/streamhub/app/media"
	"github.com/streamhub-io/streamhub/app/observability/metrics"
	"github.com/streamhub-io/streamhub/app/tracer"
	"github.com/streamhub-io/streamhub/config"
	"github.com/streamhub-io/streamhub/internal/api/auth"
	"github.com/streamhub-io/streamhub/internal/api/user"
	"github.com/streamhub-io/streamhub/internal/api/video"
	"github.com/streamhub-io/streamhub/internal/notification"
	"github.com/streamhub-io/streamhub/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger(cfg.Mode)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Observability ---
	tracer.InitTracingAndMetrics(fmt.Sprintf(":%s", cfg.Server.MetricsPort))
	metrics.InitAppMetrics()
	appMetrics := metrics.Get()

	// --- Database ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Object storage & mail ---
	store, err := media.New(ctx, cfg.Storage)
	if err != nil {
		logger.Error("Failed to initialize object storage", slog.Any("error", err))
		os.Exit(1)
	}
	mailer := notification.NewEmailService(cfg.SMTP)

	// --- Dependency Injection ---
	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	videoRepo := video.NewPostgresVideoRepo(pool, logger)
	userRepo := user.NewPostgresUserRepo(pool, logger)

	authService := auth.NewAuthService(authRepo, mailer, cfg.JWT, cfg.Auth, cfg.Client.BaseURL, appMetrics, logger)
	videoService := video.NewVideoService(videoRepo, store, appMetrics, logger)
	userService := user.NewUserService(userRepo, videoRepo, store, authService, logger)

	authHandler := auth.NewHandlerImpl(authService, cfg.JWT, cfg.Auth, logger)
	videoHandler := video.NewHandlerImpl(videoService, logger)
	userHandler := user.NewHandlerImpl(userService, logger)

	apiRouter := router.SetupRouter(&router.Config{
		Logger:       logger,
		JWT:          cfg.JWT,
		AuthHandler:  authHandler,
		UserHandler:  userHandler,
		VideoHandler: videoHandler,
	})

	// --- Router Setup ---
	r := chi.NewMux()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(cfg.Server.Timeout))
	r.Use(middleware.Compress(5, "application/json"))
	r.Mount("/", apiRouter)

	// --- HTTP Server ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutdown signal received, starting graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger(mode string) *slog.Logger {
	var logger *slog.Logger

	if mode == "development" || mode == "" {
		// Colored logs for development
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		// JSON logs for production or other environments
		jsonOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
