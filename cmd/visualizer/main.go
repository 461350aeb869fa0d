package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"rescue-map/internal/config"
	"rescue-map/internal/models"
	"rescue-map/internal/render"
	"rescue-map/internal/repository"
	"rescue-map/internal/services"
	"rescue-map/pkg/database"
	"rescue-map/pkg/logging"
	"rescue-map/pkg/metrics"
)

const version = "1.0.0"

// Exit codes
const (
	exitOK       = 0
	exitFailure  = 1
	exitNotFound = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is the whole CLI. Logs go to stderr so stdout carries only the menu
// and the list of written files.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("visualizer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	choiceFlag := fs.String("choice", "", "View to render: 1 floor chart, 2 3D building, 3 all (prompts when omitted)")
	outDir := fs.String("out", "", "Output directory (default from config)")
	persist := fs.Bool("persist", false, "Store the parsed snapshot in PostgreSQL")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return exitFailure
	}

	logger := logging.NewStructuredLogger("rescue-map-visualizer", version, logging.ParseLevel(cfg.Logging.Level))
	logger.SetOutput(stderr)
	metricsCollector := metrics.NewCollector("rescue_map", prometheus.NewRegistry())

	path := cfg.Map.Path
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if *outDir == "" {
		*outDir = cfg.Map.OutputDir
	}

	parser := services.NewParserService(logger, metricsCollector)
	parsed, err := parser.ParseFile(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "Operation cancelled by user")
			return exitFailure
		}
		fmt.Fprintf(stderr, "Failed to load map: %v\n", err)
		if errors.Is(err, models.ErrFileNotFound) {
			return exitNotFound
		}
		return exitFailure
	}

	aggregator := services.NewAggregationService(logger, metricsCollector)

	if *persist {
		if err := persistSnapshot(ctx, cfg, parsed, aggregator, logger, metricsCollector, stdout); err != nil {
			logger.Error(ctx, "[PERSIST_ERROR] Failed to store snapshot", logging.Fields{
				"map_path": path,
			}, err)
			return exitFailure
		}
	}

	answer := *choiceFlag
	if answer == "" {
		answer = prompt(stdin, stdout)
	}
	choice, err := resolveChoice(answer, render.Choice(cfg.Map.Choice))
	if err != nil {
		// An unknown option renders nothing, like an empty menu pick
		logger.Warn(ctx, "[CHOICE_INVALID] Unknown view selected, nothing rendered", logging.Fields{
			"choice": answer,
		})
		fmt.Fprintln(stdout, "Visualization complete.")
		return exitOK
	}

	renderer := render.NewRenderer(aggregator, logger, metricsCollector)
	written, err := renderer.Render(ctx, parsed, choice, *outDir)
	for _, f := range written {
		fmt.Fprintf(stdout, "Saved %s\n", f)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "Operation cancelled by user")
		} else {
			fmt.Fprintf(stderr, "Rendering failed: %v\n", err)
		}
		return exitFailure
	}

	fmt.Fprintln(stdout, "Visualization complete.")
	return exitOK
}

// prompt shows the view menu and returns the raw answer. EOF counts as blank.
func prompt(stdin io.Reader, stdout io.Writer) string {
	fmt.Fprintln(stdout, "Available options:")
	fmt.Fprintln(stdout, "1. Floor distribution chart")
	fmt.Fprintln(stdout, "2. 3D collapsed building")
	fmt.Fprintln(stdout, "3. All (recommended)")
	fmt.Fprint(stdout, "Select option (1-3, default=3): ")

	line, _ := bufio.NewReader(stdin).ReadString('\n')
	return line
}

// resolveChoice parses answer, using fallback for a blank answer
func resolveChoice(answer string, fallback render.Choice) (render.Choice, error) {
	if strings.TrimSpace(answer) == "" && fallback.Valid() {
		return fallback, nil
	}
	return render.ParseChoice(answer)
}

// persistSnapshot stores parsed and its floor records in the snapshot store
func persistSnapshot(
	ctx context.Context,
	cfg *config.Config,
	parsed *models.ParsedMap,
	aggregator *services.AggregationService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	stdout io.Writer,
) error {
	db, err := database.NewPostgresDB(ctx, cfg.Database.PostgresConfig(), logger, metricsCollector)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewSnapshotRepository(db, logger, metricsCollector)
	snap, err := repo.CreateSnapshot(ctx, parsed, aggregator.Floors(ctx, parsed))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Stored snapshot %s\n", snap.ID)
	return nil
}
