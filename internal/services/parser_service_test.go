package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rescue-map/internal/models"
	"rescue-map/pkg/logging"
	"rescue-map/pkg/metrics"
)

const header = "WIDTH=5\nHEIGHT=5\nDEPTH=2\nSURVIVORS=1\n"

func newTestParser() (*ParserService, *metrics.Collector) {
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	return NewParserService(logging.NewNopLogger(), m), m
}

func writeMap(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "saved_map.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFile_RoundTrip(t *testing.T) {
	p, _ := newTestParser()
	path := writeMap(t, header+"1,1,0,2,5,37.0,600,90,kitchen\n")

	m, err := p.ParseFile(context.Background(), path)
	require.NoError(t, err)

	want := &models.ParsedMap{
		SourcePath:        path,
		Dimensions:        models.GridDimensions{Width: 5, Height: 5, Depth: 2},
		ExpectedSurvivors: 1,
		Obstacles:         []models.Position{},
		Survivors: []models.Survivor{{
			Position:     models.Position{X: 1, Y: 1, Z: 0},
			Priority:     5,
			Heat:         37.0,
			CO2:          600,
			Confidence:   90,
			LocationType: "kitchen",
		}},
		Lines: models.LineStats{Total: 5, Headers: 4, Survivors: 1},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("ParseFile() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMap_DataLines(t *testing.T) {
	tests := []struct {
		name          string
		lines         string
		wantObstacles int
		wantSurvivors int
		wantSkipped   int
		checkValues   func(*testing.T, *models.ParsedMap)
	}{
		{
			name:          "unparsable heat drops the line",
			lines:         "1,1,0,2,5,notanumber,600,90\n2,2,1,2,5,36.5,400,80,edge\n",
			wantSurvivors: 1,
			wantSkipped:   1,
			checkValues: func(t *testing.T, m *models.ParsedMap) {
				assert.Equal(t, models.Position{X: 2, Y: 2, Z: 1}, m.Survivors[0].Position)
			},
		},
		{
			name:        "seven field survivor is dropped",
			lines:       "1,1,0,2,5,37.0,600\n",
			wantSkipped: 1,
		},
		{
			name:          "eight field survivor defaults location",
			lines:         "1,1,0,2,5,37.0,600,90\n",
			wantSurvivors: 1,
			checkValues: func(t *testing.T, m *models.ParsedMap) {
				assert.Equal(t, "unknown", m.Survivors[0].LocationType)
			},
		},
		{
			name:          "obstacle ignores trailing fields",
			lines:         "3,4,1,1\n3,4,1,1,junk,more,fields\n",
			wantObstacles: 2,
			checkValues: func(t *testing.T, m *models.ParsedMap) {
				assert.Equal(t, []models.Position{{X: 3, Y: 4, Z: 1}, {X: 3, Y: 4, Z: 1}}, m.Obstacles)
			},
		},
		{
			name:        "non integer coordinate",
			lines:       "1.5,1,0,1\nx,1,0,2,5,37,600,90\n",
			wantSkipped: 2,
		},
		{
			name:        "fewer than four fields",
			lines:       "1,1,0\n",
			wantSkipped: 1,
		},
		{
			name:        "bad confidence drops whole survivor",
			lines:       "1,1,0,2,5,37.0,600,ninety,kitchen\n",
			wantSkipped: 1,
		},
		{
			name:          "free cells are neither obstacles nor survivors",
			lines:         "1,1,0,0\n1,2,0,3\n",
			wantObstacles: 0,
			checkValues: func(t *testing.T, m *models.ParsedMap) {
				assert.Equal(t, 2, m.Lines.Unclassified)
			},
		},
		{
			name:          "negative and out of range coordinates are kept",
			lines:         "-1,99,7,1\n",
			wantObstacles: 1,
			checkValues: func(t *testing.T, m *models.ParsedMap) {
				assert.Equal(t, models.Position{X: -1, Y: 99, Z: 7}, m.Obstacles[0])
			},
		},
		{
			name:          "whitespace around tokens is tolerated",
			lines:         "  1, 2, 0, 2, 5, 36.1, 700, 85, central  \r\n",
			wantSurvivors: 1,
			checkValues: func(t *testing.T, m *models.ParsedMap) {
				assert.Equal(t, "central", m.Survivors[0].LocationType)
				assert.Equal(t, 36.1, m.Survivors[0].Heat)
			},
		},
		{
			name:  "comments blanks and non data lines are not counted",
			lines: "# 1,1,0,1 commented out\n\nPRIORITY_SYSTEM=uniform_priority\n",
			checkValues: func(t *testing.T, m *models.ParsedMap) {
				assert.Equal(t, 1, m.Lines.Comments)
				assert.Equal(t, 1, m.Lines.Blank)
				assert.Equal(t, 1, m.Lines.NonData)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ParseMap("test.txt", []byte(header+tt.lines))

			assert.Len(t, m.Obstacles, tt.wantObstacles)
			assert.Len(t, m.Survivors, tt.wantSurvivors)
			assert.Equal(t, tt.wantSkipped, m.Lines.Skipped)

			if tt.checkValues != nil {
				tt.checkValues(t, m)
			}
		})
	}
}

func TestParseMap_Headers(t *testing.T) {
	t.Run("last occurrence wins", func(t *testing.T) {
		m := ParseMap("test.txt", []byte("WIDTH=3\nWIDTH=7\n"))
		assert.Equal(t, 7, m.Dimensions.Width)
		assert.Equal(t, 2, m.Lines.Headers)
	})

	t.Run("headers after data", func(t *testing.T) {
		m := ParseMap("test.txt", []byte("1,1,2,1\nDEPTH=4\nWIDTH=2\nHEIGHT=3\nSURVIVORS=9\n"))
		assert.Equal(t, models.GridDimensions{Width: 2, Height: 3, Depth: 4}, m.Dimensions)
		assert.Equal(t, 9, m.ExpectedSurvivors)
		assert.Len(t, m.Obstacles, 1)
	})

	t.Run("missing headers mean unset", func(t *testing.T) {
		m := ParseMap("test.txt", []byte("1,1,0,1\n"))
		assert.Equal(t, models.GridDimensions{}, m.Dimensions)
		assert.Zero(t, m.ExpectedSurvivors)
	})

	t.Run("invalid value keeps previous", func(t *testing.T) {
		m := ParseMap("test.txt", []byte("HEIGHT=4\nHEIGHT=tall\n"))
		assert.Equal(t, 4, m.Dimensions.Height)
		assert.Equal(t, 1, m.Lines.Skipped)
	})

	t.Run("case sensitive prefix", func(t *testing.T) {
		m := ParseMap("test.txt", []byte("width=9\n"))
		assert.Zero(t, m.Dimensions.Width)
		assert.Equal(t, 1, m.Lines.NonData)
	})

	t.Run("value after first equals sign", func(t *testing.T) {
		m := ParseMap("test.txt", []byte("DEPTH= 6 \n"))
		assert.Equal(t, 6, m.Dimensions.Depth)
	})
}

func TestParseMap_SurvivorDiscrepancyIsReportOnly(t *testing.T) {
	m := ParseMap("test.txt", []byte("SURVIVORS=4\n1,1,0,2,5,37.0,600,90\n"))
	assert.Equal(t, 4, m.ExpectedSurvivors)
	assert.Len(t, m.Survivors, 1)
	assert.Equal(t, -3, m.SurvivorDiscrepancy())
}

func TestParseMap_EmptyInput(t *testing.T) {
	m := ParseMap("empty.txt", nil)
	assert.NotNil(t, m.Obstacles)
	assert.NotNil(t, m.Survivors)
	assert.Zero(t, m.Lines.Total)
}

func TestParseFile_NotFound(t *testing.T) {
	p, mc := newTestParser()
	path := filepath.Join(t.TempDir(), "missing.txt")

	m, err := p.ParseFile(context.Background(), path)
	assert.Nil(t, m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFileNotFound))
	assert.Contains(t, err.Error(), path)
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.ParseErrorsTotal.WithLabelValues("file_not_found")))
}

func TestParseFile_Directory(t *testing.T) {
	p, _ := newTestParser()

	_, err := p.ParseFile(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFileNotFound))
}

func TestParseFile_PathThroughRegularFile(t *testing.T) {
	p, mc := newTestParser()
	file := writeMap(t, header)

	_, err := p.ParseFile(context.Background(), filepath.Join(file, "child.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFileNotFound))
	assert.False(t, errors.Is(err, models.ErrIO))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.ParseErrorsTotal.WithLabelValues("file_not_found")))
}

func TestParseFile_ReadFailure(t *testing.T) {
	orig := readFile
	readFile = func(string) ([]byte, error) { return nil, errors.New("input/output error") }
	t.Cleanup(func() { readFile = orig })

	p, mc := newTestParser()
	path := writeMap(t, header)

	_, err := p.ParseFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrIO))
	assert.False(t, errors.Is(err, models.ErrFileNotFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.ParseErrorsTotal.WithLabelValues("io_error")))
}

func TestParseFile_Metrics(t *testing.T) {
	p, mc := newTestParser()
	content := strings.Join([]string{
		"WIDTH=5", "HEIGHT=5", "DEPTH=2", "SURVIVORS=3",
		"# comment",
		"0,0,0,1",
		"1,1,0,2,5,37.0,600,90,kitchen",
		"1,1,0,2,5,bad,600,90",
	}, "\n")
	path := writeMap(t, content)

	_, err := p.ParseFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(mc.MapSurvivors))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.MapObstacles))
	assert.Equal(t, -2.0, testutil.ToFloat64(mc.SurvivorMismatch))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.ParseLinesTotal.WithLabelValues("skipped")))
	assert.Equal(t, 4.0, testutil.ToFloat64(mc.ParseLinesTotal.WithLabelValues("header")))
}

func TestParseFile_CancelledContext(t *testing.T) {
	p, _ := newTestParser()
	path := writeMap(t, header)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ParseFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
