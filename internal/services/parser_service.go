package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"rescue-map/internal/models"
	"rescue-map/pkg/logging"
	"rescue-map/pkg/metrics"
)

// Header keys recognised in map files. Matching is case-sensitive on the
// trimmed line.
const (
	headerWidth     = "WIDTH="
	headerHeight    = "HEIGHT="
	headerDepth     = "DEPTH="
	headerSurvivors = "SURVIVORS="
)

var headerPrefixes = []string{headerWidth, headerHeight, headerDepth, headerSurvivors}

// Data line layout: x,y,z,type[,priority,heat,co2,confidence[,location_type]]
const (
	minCellFields     = 4
	minSurvivorFields = 8
	locationField     = 8

	unknownLocation = "unknown"
)

// ParserService loads map files into ParsedMap snapshots
type ParserService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewParserService creates a new parser service
func NewParserService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ParserService {
	return &ParserService{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ParseFile reads and parses the map at path. It fails only when the file
// cannot be loaded; malformed lines are skipped and counted.
func (s *ParserService) ParseFile(ctx context.Context, path string) (*models.ParsedMap, error) {
	ctx = logging.WithMapPath(ctx, path)
	timer := s.metrics.NewTimer(s.metrics.ParseDuration)

	s.logger.Info(ctx, "[PARSE_START] Loading map file", logging.Fields{
		"stage": "INITIALIZATION",
	})

	data, err := readMapFile(path)
	if err != nil {
		var perr *models.ParseError
		kind := "io_error"
		if errors.As(err, &perr) && errors.Is(perr.Kind, models.ErrFileNotFound) {
			kind = "file_not_found"
		}
		s.metrics.RecordParseError(kind)
		s.logger.Error(ctx, "[PARSE_LOAD_ERROR] Map file could not be loaded", logging.Fields{
			"kind":  kind,
			"stage": "FILE_READ",
		}, err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	m := ParseMap(path, data)
	duration := timer.ObserveDuration()

	s.recordLineStats(m.Lines)
	s.metrics.MapSurvivors.Set(float64(len(m.Survivors)))
	s.metrics.MapObstacles.Set(float64(len(m.Obstacles)))
	s.metrics.SurvivorMismatch.Set(float64(m.SurvivorDiscrepancy()))

	s.logger.Info(ctx, "[PARSE_COMPLETE] Map loaded", logging.Fields{
		"width":              m.Dimensions.Width,
		"height":             m.Dimensions.Height,
		"depth":              m.Dimensions.Depth,
		"obstacles":          len(m.Obstacles),
		"survivors":          len(m.Survivors),
		"expected_survivors": m.ExpectedSurvivors,
		"total_lines":        m.Lines.Total,
		"skipped_lines":      m.Lines.Skipped,
		"duration_ms":        duration.Milliseconds(),
		"stage":              "COMPLETE",
	})

	if diff := m.SurvivorDiscrepancy(); diff != 0 {
		s.logger.Warn(ctx, "[PARSE_SURVIVOR_MISMATCH] Parsed survivor count differs from header", logging.Fields{
			"expected_survivors": m.ExpectedSurvivors,
			"parsed_survivors":   len(m.Survivors),
			"difference":         diff,
		})
	}

	return m, nil
}

func (s *ParserService) recordLineStats(st models.LineStats) {
	s.metrics.RecordParseLines("header", st.Headers)
	s.metrics.RecordParseLines("comment", st.Comments)
	s.metrics.RecordParseLines("blank", st.Blank)
	s.metrics.RecordParseLines("non_data", st.NonData)
	s.metrics.RecordParseLines("obstacle", st.Obstacles)
	s.metrics.RecordParseLines("survivor", st.Survivors)
	s.metrics.RecordParseLines("skipped", st.Skipped)
	s.metrics.RecordParseLines("unclassified", st.Unclassified)
}

// readFile is swapped in tests to simulate read failures
var readFile = os.ReadFile

// readMapFile reads the whole file. Any path that does not stat as a
// regular file is reported as not found; a failed read after that is an
// I/O failure.
func readMapFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &models.ParseError{Kind: models.ErrFileNotFound, Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &models.ParseError{
			Kind: models.ErrFileNotFound,
			Path: path,
			Err:  fmt.Errorf("not a regular file (mode %s)", info.Mode()),
		}
	}

	data, err := readFile(path)
	if err != nil {
		return nil, &models.ParseError{Kind: models.ErrIO, Path: path, Err: err}
	}
	return data, nil
}

// ParseMap parses map file contents. Headers are collected in a first pass
// over every line so they may appear after the data they describe; cells
// are collected in a second pass.
func ParseMap(path string, data []byte) *models.ParsedMap {
	lines := splitLines(string(data))

	m := &models.ParsedMap{
		SourcePath: path,
		Obstacles:  make([]models.Position, 0),
		Survivors:  make([]models.Survivor, 0),
	}
	m.Lines.Total = len(lines)

	for _, line := range lines {
		if !isHeader(line) {
			continue
		}
		m.Lines.Headers++
		if err := applyHeader(m, line); err != nil {
			m.Lines.Skipped++
		}
	}

	for _, line := range lines {
		switch {
		case isHeader(line):
			continue
		case line == "":
			m.Lines.Blank++
			continue
		case strings.HasPrefix(line, "#"):
			m.Lines.Comments++
			continue
		case !strings.Contains(line, ","):
			m.Lines.NonData++
			continue
		}

		cell, ok, err := parseCell(line)
		switch {
		case err != nil:
			m.Lines.Skipped++
		case !ok:
			m.Lines.Unclassified++
		case cell.Kind == models.CellObstacle:
			m.Obstacles = append(m.Obstacles, cell.Position)
			m.Lines.Obstacles++
		default:
			m.Survivors = append(m.Survivors, *cell.Survivor)
			m.Lines.Survivors++
		}
	}

	return m
}

// splitLines splits on newlines and trims each line. A trailing newline
// does not produce an extra line.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}

func isHeader(line string) bool {
	for _, p := range headerPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// applyHeader stores the header value on m. The previous value is kept
// when the new one is not an integer.
func applyHeader(m *models.ParsedMap, line string) error {
	key, raw, _ := strings.Cut(line, "=")
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return &models.ValidationError{
			Field:   key,
			Value:   raw,
			Message: fmt.Sprintf("invalid %s header value %q", key, raw),
		}
	}

	switch key + "=" {
	case headerWidth:
		m.Dimensions.Width = value
	case headerHeight:
		m.Dimensions.Height = value
	case headerDepth:
		m.Dimensions.Depth = value
	case headerSurvivors:
		m.ExpectedSurvivors = value
	}
	return nil
}

// parseCell parses one comma-separated data line. ok is false for a
// well-formed line whose type code is neither obstacle nor survivor.
func parseCell(line string) (cell models.Cell, ok bool, err error) {
	parts := strings.Split(line, ",")
	if len(parts) < minCellFields {
		return models.Cell{}, false, fmt.Errorf("expected at least %d fields, got %d", minCellFields, len(parts))
	}

	var head [minCellFields]int
	for i := range head {
		head[i], err = strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return models.Cell{}, false, fmt.Errorf("field %d: %w", i, err)
		}
	}
	pos := models.Position{X: head[0], Y: head[1], Z: head[2]}

	switch models.CellKind(head[3]) {
	case models.CellObstacle:
		return models.ObstacleCell(pos), true, nil
	case models.CellSurvivor:
		s, err := parseSurvivor(pos, parts)
		if err != nil {
			return models.Cell{}, false, err
		}
		return models.SurvivorCell(s), true, nil
	default:
		return models.Cell{}, false, nil
	}
}

func parseSurvivor(pos models.Position, parts []string) (models.Survivor, error) {
	if len(parts) < minSurvivorFields {
		return models.Survivor{}, fmt.Errorf("survivor needs %d fields, got %d", minSurvivorFields, len(parts))
	}

	priority, err := strconv.Atoi(strings.TrimSpace(parts[4]))
	if err != nil {
		return models.Survivor{}, fmt.Errorf("invalid priority: %w", err)
	}
	heat, err := strconv.ParseFloat(strings.TrimSpace(parts[5]), 64)
	if err != nil {
		return models.Survivor{}, fmt.Errorf("invalid heat: %w", err)
	}
	co2, err := strconv.ParseFloat(strings.TrimSpace(parts[6]), 64)
	if err != nil {
		return models.Survivor{}, fmt.Errorf("invalid co2: %w", err)
	}
	confidence, err := strconv.Atoi(strings.TrimSpace(parts[7]))
	if err != nil {
		return models.Survivor{}, fmt.Errorf("invalid confidence: %w", err)
	}

	location := unknownLocation
	if len(parts) > locationField {
		location = strings.TrimSpace(parts[locationField])
	}

	return models.Survivor{
		Position:     pos,
		Priority:     priority,
		Heat:         heat,
		CO2:          co2,
		Confidence:   confidence,
		LocationType: location,
	}, nil
}
