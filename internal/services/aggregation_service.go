package services

import (
	"context"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"rescue-map/internal/models"
	"rescue-map/pkg/logging"
	"rescue-map/pkg/metrics"
)

// Aggregate view names used in logs, metrics and reports
const (
	ViewFloors      = "floors"
	ViewTemperature = "temperature"
	ViewStatistics  = "statistics"
)

// PerFloorCounts returns one record per floor in [0, depth), ascending,
// including floors with nothing on them. Cells on other floors are ignored.
func PerFloorCounts(m *models.ParsedMap) []models.FloorRecord {
	depth := m.Dimensions.Depth
	if depth <= 0 {
		return []models.FloorRecord{}
	}

	survivors := make([]int, depth)
	obstacles := make([]int, depth)
	for _, s := range m.Survivors {
		if z := s.Position.Z; z >= 0 && z < depth {
			survivors[z]++
		}
	}
	for _, p := range m.Obstacles {
		if p.Z >= 0 && p.Z < depth {
			obstacles[p.Z]++
		}
	}

	area := float64(m.Dimensions.FloorArea())
	records := make([]models.FloorRecord, depth)
	for z := 0; z < depth; z++ {
		density := float64(obstacles[z]) / area
		records[z] = models.FloorRecord{
			Floor:         z,
			SurvivorCount: survivors[z],
			ObstacleCount: obstacles[z],
			Density:       density,
			DensityClass:  models.ClassifyDensity(density),
		}
	}
	return records
}

// BucketByTemperature splits survivors into low, normal and high bands.
// Every survivor lands in exactly one bucket and order is preserved.
func BucketByTemperature(survivors []models.Survivor) models.TemperatureBuckets {
	b := models.TemperatureBuckets{
		Low:    make([]models.Survivor, 0),
		Normal: make([]models.Survivor, 0),
		High:   make([]models.Survivor, 0),
	}
	for _, s := range survivors {
		switch models.ClassifyTemperature(s.Heat) {
		case models.TemperatureLow:
			b.Low = append(b.Low, s)
		case models.TemperatureNormal:
			b.Normal = append(b.Normal, s)
		default:
			b.High = append(b.High, s)
		}
	}
	return b
}

// SummarizeSurvivors computes heat and CO2 statistics. It returns
// models.ErrEmptyInput when there are no survivors.
func SummarizeSurvivors(survivors []models.Survivor) (models.SurvivorStatistics, error) {
	if len(survivors) == 0 {
		return models.SurvivorStatistics{}, models.ErrEmptyInput
	}

	heat := make([]float64, len(survivors))
	co2 := make([]float64, len(survivors))
	for i, s := range survivors {
		heat[i] = s.Heat
		co2[i] = s.CO2
	}

	return models.SurvivorStatistics{
		Count:    len(survivors),
		MeanHeat: stat.Mean(heat, nil),
		MinHeat:  floats.Min(heat),
		MaxHeat:  floats.Max(heat),
		MeanCO2:  stat.Mean(co2, nil),
	}, nil
}

// AggregateReport bundles every view of one map. Errors are per view so a
// failing aggregate does not hide the others.
type AggregateReport struct {
	Floors      []models.FloorRecord       `json:"floors"`
	Temperature models.TemperatureBuckets  `json:"temperature"`
	Statistics  *models.SurvivorStatistics `json:"statistics,omitempty"`
	Discrepancy int                        `json:"survivor_discrepancy"`
	ViewErrors  map[string]string          `json:"view_errors,omitempty"`
}

// AggregationService computes views over a parsed map with logging and metrics
type AggregationService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAggregationService creates a new aggregation service
func NewAggregationService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AggregationService {
	return &AggregationService{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Floors returns the per-floor records for m
func (s *AggregationService) Floors(ctx context.Context, m *models.ParsedMap) []models.FloorRecord {
	timer := s.metrics.NewTimer(s.metrics.AggregateDuration.WithLabelValues(ViewFloors))
	floors := PerFloorCounts(m)
	duration := timer.ObserveDuration()

	s.logger.Debug(ctx, "[AGG_FLOORS] Per-floor counts computed", logging.Fields{
		"floors":      len(floors),
		"duration_us": duration.Microseconds(),
	})
	return floors
}

// Temperature returns the temperature buckets for m
func (s *AggregationService) Temperature(ctx context.Context, m *models.ParsedMap) models.TemperatureBuckets {
	timer := s.metrics.NewTimer(s.metrics.AggregateDuration.WithLabelValues(ViewTemperature))
	buckets := BucketByTemperature(m.Survivors)
	timer.ObserveDuration()

	s.logger.Debug(ctx, "[AGG_TEMPERATURE] Temperature buckets computed", logging.Fields{
		"low":    len(buckets.Low),
		"normal": len(buckets.Normal),
		"high":   len(buckets.High),
	})
	return buckets
}

// Statistics returns survivor statistics for m or models.ErrEmptyInput
func (s *AggregationService) Statistics(ctx context.Context, m *models.ParsedMap) (models.SurvivorStatistics, error) {
	timer := s.metrics.NewTimer(s.metrics.AggregateDuration.WithLabelValues(ViewStatistics))
	stats, err := SummarizeSurvivors(m.Survivors)
	timer.ObserveDuration()

	if err != nil {
		s.metrics.RecordAggregateError(ViewStatistics)
		s.logger.Warn(ctx, "[AGG_STATS_EMPTY] Survivor statistics unavailable", logging.Fields{
			"error": err.Error(),
		})
		return models.SurvivorStatistics{}, err
	}
	return stats, nil
}

// BuildReport computes every view of m
func (s *AggregationService) BuildReport(ctx context.Context, m *models.ParsedMap) *AggregateReport {
	report := &AggregateReport{
		Floors:      s.Floors(ctx, m),
		Temperature: s.Temperature(ctx, m),
		Discrepancy: m.SurvivorDiscrepancy(),
	}

	if stats, err := s.Statistics(ctx, m); err != nil {
		report.ViewErrors = map[string]string{ViewStatistics: err.Error()}
	} else {
		report.Statistics = &stats
	}

	return report
}
