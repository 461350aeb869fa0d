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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rescue-map/internal/config"
	"rescue-map/internal/handlers"
	"rescue-map/internal/repository"
	"rescue-map/internal/services"
	"rescue-map/pkg/database"
	"rescue-map/pkg/logging"
	"rescue-map/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("rescue-map-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting rescue map API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"map_path":    cfg.Map.Path,
		"db_enabled":  cfg.Database.Enabled,
	})

	metricsCollector := metrics.NewCollector("rescue_map", prometheus.DefaultRegisterer)

	// The map is loaded once and shared read-only by every request
	parser := services.NewParserService(logger, metricsCollector)
	parsed, err := parser.ParseFile(ctx, cfg.Map.Path)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load map", logging.Fields{
			"map_path": cfg.Map.Path,
		}, err)
	}

	aggregator := services.NewAggregationService(logger, metricsCollector)

	var snapshots repository.SnapshotRepository
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, cfg.Database.PostgresConfig(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()

		snapshots = repository.NewSnapshotRepository(db, logger, metricsCollector)
	}

	mapHandler := handlers.NewMapHandler(parsed, aggregator, snapshots, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestID)
	mapHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/api/docs/openapi.json", handlers.OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", handlers.SwaggerUI).Methods("GET")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
