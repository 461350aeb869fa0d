package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"rescue-map/internal/config"
	"rescue-map/pkg/database"
	"rescue-map/pkg/logging"
	"rescue-map/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up, down or version")
	dir := flag.String("path", "migrations", "Directory containing migration files")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("rescue-map-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, cfg.Database.PostgresConfig(), logger, metrics.NewCollector("rescue_map_migrate", prometheus.NewRegistry()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch *direction {
	case "up":
		err = db.MigrateUp(*dir)
	case "down":
		err = db.MigrateDown(*dir)
	case "version":
		var (
			v     uint
			dirty bool
		)
		v, dirty, err = db.MigrateVersion(*dir)
		if err == nil {
			fmt.Printf("Schema version: %d (dirty=%t)\n", v, dirty)
			return
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown direction %q, expected up, down or version\n", *direction)
		db.Close()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		db.Close()
		os.Exit(1)
	}

	fmt.Printf("Migration %s completed successfully\n", *direction)
}
