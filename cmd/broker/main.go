package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wicara-ai/wicara/adapters/elevenlabs"
	"github.com/wicara-ai/wicara/internal/api"
	"github.com/wicara-ai/wicara/internal/auth"
	"github.com/wicara-ai/wicara/internal/config"
	"github.com/wicara-ai/wicara/internal/metrics"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Honor a local .env file when present
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded environment from .env file")
	}

	cfg := config.BrokerFromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Initialize adapters
	upstream, err := elevenlabs.NewClient(elevenlabs.Config{
		APIKey:     cfg.APIKey,
		APIBaseURL: cfg.APIBaseURL,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create upstream client", zap.Error(err))
	}

	authService := auth.NewService(cfg.JWTSecret)
	if authService.Enabled() {
		logger.Info("Bearer-token auth enabled on /api")
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, upstream, authService, m, prometheus.DefaultGatherer, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Broker started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Broker is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Broker exited")
}
