package render

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rescue-map/internal/models"
	"rescue-map/internal/services"
	"rescue-map/pkg/logging"
	"rescue-map/pkg/metrics"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

func sampleMap() *models.ParsedMap {
	return &models.ParsedMap{
		SourcePath: "sample.txt",
		Dimensions: models.GridDimensions{Width: 4, Height: 3, Depth: 2},
		Obstacles:  []models.Position{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 2, Z: 1}, {X: 3, Y: 1, Z: 1}},
		Survivors: []models.Survivor{
			{Position: models.Position{X: 1, Y: 1, Z: 0}, Priority: 5, Heat: 35.2, CO2: 300, Confidence: 80, LocationType: "stairwell"},
			{Position: models.Position{X: 2, Y: 1, Z: 1}, Priority: 5, Heat: 36.8, CO2: 700, Confidence: 90, LocationType: "kitchen"},
			{Position: models.Position{X: 3, Y: 2, Z: 1}, Priority: 5, Heat: 38.1, CO2: 1400, Confidence: 95, LocationType: "unknown"},
		},
	}
}

func newTestRenderer() (*Renderer, *metrics.Collector) {
	mc := metrics.NewCollector("test", prometheus.NewRegistry())
	logger := logging.NewNopLogger()
	return NewRenderer(services.NewAggregationService(logger, mc), logger, mc), mc
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		input   string
		want    Choice
		wantErr bool
	}{
		{input: "", want: ChoiceAll},
		{input: "  ", want: ChoiceAll},
		{input: "1", want: ChoiceFloorDistribution},
		{input: " 2\n", want: ChoiceCollapsedBuilding},
		{input: "3", want: ChoiceAll},
		{input: "0", wantErr: true},
		{input: "4", wantErr: true},
		{input: "all", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChoice(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidChoice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFloorDistributionChart(t *testing.T) {
	m := sampleMap()
	var buf bytes.Buffer

	require.NoError(t, FloorDistributionChart(&buf, m, services.PerFloorCounts(m)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngSignature))
}

func TestFloorDistributionChart_NoFloors(t *testing.T) {
	var buf bytes.Buffer

	err := FloorDistributionChart(&buf, sampleMap(), nil)
	assert.True(t, errors.Is(err, models.ErrEmptyInput))
	assert.Zero(t, buf.Len())
}

func TestCollapsedBuildingChart(t *testing.T) {
	m := sampleMap()
	stats, err := services.SummarizeSurvivors(m.Survivors)
	require.NoError(t, err)

	tests := []struct {
		name  string
		m     *models.ParsedMap
		stats *models.SurvivorStatistics
	}{
		{name: "with statistics", m: m, stats: &stats},
		{name: "without statistics", m: m},
		{name: "unknown dimensions", m: &models.ParsedMap{Obstacles: []models.Position{{X: 1, Y: 1, Z: 0}}}},
		{name: "empty map", m: &models.ParsedMap{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := CollapsedBuildingChart(&buf, tt.m, services.BucketByTemperature(tt.m.Survivors), tt.stats)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngSignature))
		})
	}
}

func TestBuilding3DPage(t *testing.T) {
	m := sampleMap()
	var buf bytes.Buffer

	require.NoError(t, Building3DPage(&buf, m, services.BucketByTemperature(m.Survivors)))

	html := buf.String()
	assert.Contains(t, html, "scatter3D")
	assert.Contains(t, html, "Debris (3)")
	assert.Contains(t, html, "Normal Temp")
	assert.Contains(t, html, "#654321")
	assert.Contains(t, html, hexColor(bandColor(models.TemperatureHigh)))
	assert.Contains(t, html, "kitchen")
}

func TestMarkerSizesFollowCO2Class(t *testing.T) {
	small := radius(markerArea(models.SizeSmall))
	medium := radius(markerArea(models.SizeMedium))
	large := radius(markerArea(models.SizeLarge))

	assert.Less(t, small, medium)
	assert.Less(t, medium, large)
	assert.Equal(t, 11, diameter(markerArea(models.SizeSmall)))
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, "#1E90FF", hexColor(bandColor(models.TemperatureLow)))
	assert.Equal(t, "#32CD32", hexColor(bandColor(models.TemperatureNormal)))
	assert.Equal(t, "#FF4500", hexColor(bandColor(models.TemperatureHigh)))
	assert.Equal(t, "#654321", hexColor(debrisColor))
}

func TestRenderer_Render(t *testing.T) {
	tests := []struct {
		name      string
		m         *models.ParsedMap
		choice    Choice
		wantFiles []string
	}{
		{
			name:      "all",
			m:         sampleMap(),
			choice:    ChoiceAll,
			wantFiles: []string{FloorDistributionFile, CollapsedBuildingFile, Building3DPageFile},
		},
		{
			name:      "floor chart only",
			m:         sampleMap(),
			choice:    ChoiceFloorDistribution,
			wantFiles: []string{FloorDistributionFile},
		},
		{
			name:      "building only",
			m:         sampleMap(),
			choice:    ChoiceCollapsedBuilding,
			wantFiles: []string{CollapsedBuildingFile, Building3DPageFile},
		},
		{
			name: "floor chart skipped without survivors",
			m: &models.ParsedMap{
				Dimensions: models.GridDimensions{Width: 2, Height: 2, Depth: 1},
				Obstacles:  []models.Position{{X: 0, Y: 0, Z: 0}},
			},
			choice:    ChoiceAll,
			wantFiles: []string{CollapsedBuildingFile, Building3DPageFile},
		},
		{
			name: "floor chart skipped without depth",
			m: &models.ParsedMap{
				Dimensions: models.GridDimensions{Width: 3, Height: 3},
				Obstacles:  []models.Position{{X: 0, Y: 0, Z: 0}},
				Survivors: []models.Survivor{
					{Position: models.Position{X: 1, Y: 1, Z: 0}, Priority: 5, Heat: 36.6, CO2: 400, Confidence: 90, LocationType: "kitchen"},
				},
			},
			choice:    ChoiceAll,
			wantFiles: []string{CollapsedBuildingFile, Building3DPageFile},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRenderer()
			dir := t.TempDir()

			written, err := r.Render(context.Background(), tt.m, tt.choice, dir)
			require.NoError(t, err)

			want := make([]string, len(tt.wantFiles))
			for i, f := range tt.wantFiles {
				want[i] = filepath.Join(dir, f)
			}
			assert.Equal(t, want, written)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, len(tt.wantFiles))
			for _, path := range written {
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Positive(t, info.Size())
			}
		})
	}
}

func TestRenderer_Render_CreatesOutputDir(t *testing.T) {
	r, _ := newTestRenderer()
	dir := filepath.Join(t.TempDir(), "charts", "site-a")

	written, err := r.Render(context.Background(), sampleMap(), ChoiceCollapsedBuilding, dir)
	require.NoError(t, err)
	assert.Len(t, written, 2)
}

func TestRenderer_Render_InvalidChoice(t *testing.T) {
	r, _ := newTestRenderer()

	_, err := r.Render(context.Background(), sampleMap(), Choice(7), t.TempDir())
	assert.ErrorIs(t, err, ErrInvalidChoice)
}

func TestRenderer_Render_OutputDirIsFile(t *testing.T) {
	r, _ := newTestRenderer()
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := r.Render(context.Background(), sampleMap(), ChoiceAll, file)
	assert.Error(t, err)
}

func TestRenderer_Render_CancelledBeforeBuilding(t *testing.T) {
	r, mc := newTestRenderer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	written, err := r.Render(ctx, sampleMap(), ChoiceCollapsedBuilding, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, written)
	assert.Zero(t, testutil.ToFloat64(mc.RenderErrorsTotal.WithLabelValues(ArtifactCollapsedBuilding)))
}
