// PurpleKit Analytics Service - Main Entry Point
// Multi-tenant purple-team dashboard aggregation service
// Copyright (c) 2024 PurpleKit. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/purplekit/backend/services/analytics/config"
	"github.com/purplekit/backend/services/analytics/domain/repository"
	"github.com/purplekit/backend/services/analytics/infrastructure/api"
	"github.com/purplekit/backend/services/analytics/infrastructure/cache"
	"github.com/purplekit/backend/services/analytics/infrastructure/database"
	"github.com/purplekit/backend/services/analytics/metrics"
	"github.com/purplekit/backend/services/analytics/usecase"
)

// Version information (set by build)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	logger.WithFields(logrus.Fields{
		"service":    "analytics",
		"version":    Version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
	}).Info("Starting PurpleKit Analytics Service")

	// Load configuration
	cfg, err := loadConfiguration()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// Set log level
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	logger.WithFields(logrus.Fields{
		"log_level":       cfg.LogLevel,
		"server_port":     cfg.Server.Port,
		"database_host":   cfg.Database.Host,
		"cache_enabled":   cfg.Cache.Enabled,
		"auth_enabled":    cfg.Auth.Enabled,
		"metrics_enabled": cfg.Metrics.Enabled,
	}).Info("Configuration loaded")

	// Initialize metrics collector
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics)
	}

	// Initialize analytics repository
	analyticsRepo, err := database.NewPostgreSQLAnalyticsRepository(
		cfg.Database.ConnectionString(),
		cfg.Repository,
		logger,
		collector,
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize analytics repository")
	}

	// Initialize dashboard cache. A cache outage degrades to direct reads,
	// so a failed connection is a warning rather than a startup failure.
	var responseCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		responseCache, err = cache.NewResponseCache(cfg.Cache, logger, collector)
		if err != nil {
			logger.WithError(err).Warn("Dashboard cache unavailable, continuing without it")
			responseCache = nil
		}
	}

	// Initialize use case and HTTP surface
	analyticsUseCase := usecase.NewAnalyticsUseCase(analyticsRepo, logger)
	analyticsHandler := api.NewAnalyticsHandler(analyticsUseCase, responseCache, logger)
	authMiddleware := api.NewAuthMiddleware(cfg.Auth, logger)

	router := setupRoutes(analyticsHandler, authMiddleware, analyticsRepo, collector, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Start metrics server if enabled
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, collector.Handler())
		metricsServer = &http.Server{
			Addr:    cfg.Metrics.ListenAddress(),
			Handler: metricsMux,
		}
		go func() {
			logger.WithField("port", cfg.Metrics.Port).Info("Starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Metrics server shutdown failed")
		}
	}
	if responseCache != nil {
		if err := responseCache.Close(); err != nil {
			logger.WithError(err).Error("Cache shutdown failed")
		}
	}

	logger.Info("PurpleKit Analytics Service stopped")
}

func loadConfiguration() (*config.Configuration, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/purplekit/analytics")

	// Environment variable support
	viper.SetEnvPrefix("ANALYTICS")
	viper.AutomaticEnv()

	// Set defaults
	setConfigDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			logrus.Warn("Configuration file not found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg config.Configuration
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setConfigDefaults() {
	// Service defaults
	viper.SetDefault("service.name", "analytics")
	viper.SetDefault("service.environment", "development")

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.name", "purplekit")
	viper.SetDefault("database.ssl_mode", "require")

	// Repository defaults
	viper.SetDefault("repository.max_connections", 25)
	viper.SetDefault("repository.max_idle_connections", 5)
	viper.SetDefault("repository.connection_lifetime", "5m")
	viper.SetDefault("repository.query_timeout", "30s")
	viper.SetDefault("repository.enable_query_logging", false)
	viper.SetDefault("repository.enable_metrics", true)

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.address", "localhost:6379")
	viper.SetDefault("cache.database", 0)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.dial_timeout", "5s")
	viper.SetDefault("cache.read_timeout", "3s")
	viper.SetDefault("cache.write_timeout", "3s")
	viper.SetDefault("cache.ttl", "60s")
	viper.SetDefault("cache.key_prefix", "purplekit:")

	// Auth defaults
	viper.SetDefault("auth.enabled", true)

	// Logging defaults
	viper.SetDefault("log_level", "info")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.namespace", "purplekit")
	viper.SetDefault("metrics.subsystem", "analytics")
}

func setupRoutes(
	analyticsHandler *api.AnalyticsHandler,
	authMiddleware *api.AuthMiddleware,
	repo repository.AnalyticsRepository,
	collector *metrics.Collector,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := repo.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","service":"analytics"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"analytics"}`))
	}).Methods("GET")

	// Version endpoint
	router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		response := fmt.Sprintf(`{"version":"%s","git_commit":"%s","build_time":"%s"}`, Version, GitCommit, BuildTime)
		w.Write([]byte(response))
	}).Methods("GET")

	// API routes
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMiddleware.Authenticate())
	analyticsHandler.RegisterRoutes(apiRouter)

	// Add middleware
	router.Use(loggingMiddleware(logger))
	router.Use(metricsMiddleware(collector))
	router.Use(corsMiddleware())
	router.Use(securityHeadersMiddleware())

	return router
}

// Middleware functions

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create response writer wrapper to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			logger.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.UserAgent(),
				"status_code": wrapped.statusCode,
				"duration_ms": duration.Milliseconds(),
			}).Info("HTTP request processed")
		})
	}
}

func metricsMiddleware(collector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if template, err := current.GetPathTemplate(); err == nil {
					route = template
				}
			}
			collector.ObserveRequest(r.Method, route, wrapped.statusCode, time.Since(start))
		})
	}
}

func corsMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
