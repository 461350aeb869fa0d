package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rescue-map/internal/models"
	"rescue-map/internal/services"
	"rescue-map/pkg/logging"
	"rescue-map/pkg/metrics"
)

// Choice selects which renderings to produce
type Choice int

const (
	ChoiceFloorDistribution Choice = 1
	ChoiceCollapsedBuilding Choice = 2
	ChoiceAll               Choice = 3
)

// DefaultChoice is used when no choice is given
const DefaultChoice = ChoiceAll

// ErrInvalidChoice is returned by ParseChoice for anything but 1, 2, 3 or blank
var ErrInvalidChoice = errors.New("invalid choice")

// ParseChoice reads a menu answer. A blank answer selects DefaultChoice.
func ParseChoice(s string) (Choice, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultChoice, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Choice(n).Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
	return Choice(n), nil
}

// Valid reports whether c is one of the menu options
func (c Choice) Valid() bool {
	return c >= ChoiceFloorDistribution && c <= ChoiceAll
}

func (c Choice) includesFloorChart() bool {
	return c == ChoiceFloorDistribution || c == ChoiceAll
}

func (c Choice) includesBuilding() bool {
	return c == ChoiceCollapsedBuilding || c == ChoiceAll
}

// Renderer writes chart files for a parsed map
type Renderer struct {
	aggregator *services.AggregationService
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewRenderer creates a renderer that computes views through aggregator
func NewRenderer(aggregator *services.AggregationService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Renderer {
	return &Renderer{
		aggregator: aggregator,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// Render writes the artifacts selected by choice into outDir and returns
// the paths written. The floor chart is skipped when there are no survivors.
func (r *Renderer) Render(ctx context.Context, m *models.ParsedMap, choice Choice, outDir string) ([]string, error) {
	if !choice.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChoice, choice)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", outDir, err)
	}

	var written []string

	if choice.includesFloorChart() {
		if len(m.Survivors) == 0 {
			r.logger.Warn(ctx, "[RENDER_SKIP] Floor distribution chart needs survivor data", logging.Fields{
				"artifact": ArtifactFloorDistribution,
			})
		} else if floors := r.aggregator.Floors(ctx, m); len(floors) == 0 {
			r.logger.Warn(ctx, "[RENDER_SKIP] Floor distribution chart needs a known depth", logging.Fields{
				"artifact": ArtifactFloorDistribution,
				"depth":    m.Dimensions.Depth,
			})
		} else {
			path := filepath.Join(outDir, FloorDistributionFile)
			err := r.renderFile(ctx, ArtifactFloorDistribution, path, func(w io.Writer) error {
				return FloorDistributionChart(w, m, floors)
			})
			if err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}

	if choice.includesBuilding() {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		buckets := r.aggregator.Temperature(ctx, m)
		var stats *models.SurvivorStatistics
		if s, err := r.aggregator.Statistics(ctx, m); err == nil {
			stats = &s
		}

		path := filepath.Join(outDir, CollapsedBuildingFile)
		err := r.renderFile(ctx, ArtifactCollapsedBuilding, path, func(w io.Writer) error {
			return CollapsedBuildingChart(w, m, buckets, stats)
		})
		if err != nil {
			return written, err
		}
		written = append(written, path)

		page := filepath.Join(outDir, Building3DPageFile)
		err = r.renderFile(ctx, ArtifactBuilding3D, page, func(w io.Writer) error {
			return Building3DPage(w, m, buckets)
		})
		if err != nil {
			return written, err
		}
		written = append(written, page)
	}

	return written, nil
}

// renderFile creates path and fills it with paint. A partially written file
// is removed on failure.
func (r *Renderer) renderFile(ctx context.Context, artifact, path string, paint func(io.Writer) error) (err error) {
	timer := r.metrics.NewTimer(r.metrics.RenderDuration.WithLabelValues(artifact))

	defer func() {
		if err != nil {
			r.metrics.RecordRenderError(artifact)
			r.logger.Error(ctx, "[RENDER_ERROR] Failed to render artifact", logging.Fields{
				"artifact": artifact,
				"path":     path,
			}, err)
		}
	}()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err = paint(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("render %s: %w", artifact, err)
	}
	if err = f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close %s: %w", path, err)
	}

	duration := timer.ObserveDuration()
	r.logger.Info(ctx, "[RENDER_COMPLETE] Artifact written", logging.Fields{
		"artifact":    artifact,
		"path":        path,
		"duration_ms": duration.Milliseconds(),
	})
	return nil
}
