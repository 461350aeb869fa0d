package models

import (
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClassifyTemperature covers the band boundaries
func TestClassifyTemperature(t *testing.T) {
	tests := []struct {
		name string
		heat float64
		want TemperatureBand
	}{
		{name: "just below normal", heat: 35.999, want: TemperatureLow},
		{name: "cold", heat: 25.0, want: TemperatureLow},
		{name: "normal lower bound", heat: 36.0, want: TemperatureNormal},
		{name: "normal", heat: 37.0, want: TemperatureNormal},
		{name: "just below high", heat: 37.4999, want: TemperatureNormal},
		{name: "high lower bound", heat: 37.5, want: TemperatureHigh},
		{name: "fever", heat: 41.0, want: TemperatureHigh},
		{name: "negative", heat: -5, want: TemperatureLow},
		{name: "nan lands in exactly one band", heat: math.NaN(), want: TemperatureHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTemperature(tt.heat); got != tt.want {
				t.Errorf("ClassifyTemperature(%v) = %v, want %v", tt.heat, got, tt.want)
			}
		})
	}
}

func TestClassifyCO2(t *testing.T) {
	tests := []struct {
		co2  float64
		want SizeClass
	}{
		{0, SizeSmall},
		{499.99, SizeSmall},
		{500, SizeMedium},
		{999.9, SizeMedium},
		{1000, SizeLarge},
		{6000, SizeLarge},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyCO2(tt.co2), "co2=%v", tt.co2)
	}
}

func TestClassifyDensity(t *testing.T) {
	tests := []struct {
		density float64
		want    DensityClass
	}{
		{0, DensityLow},
		{0.2999, DensityLow},
		{0.3, DensityMedium},
		{0.5999, DensityMedium},
		{0.6, DensityHigh},
		{1.7, DensityHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyDensity(tt.density), "density=%v", tt.density)
	}
}

func TestGridDimensions_FloorArea(t *testing.T) {
	assert.Equal(t, 20, GridDimensions{Width: 5, Height: 4, Depth: 2}.FloorArea())
	assert.Equal(t, 1, GridDimensions{Width: 0, Height: 4}.FloorArea())
	assert.Equal(t, 1, GridDimensions{Width: 5, Height: 0}.FloorArea())
	assert.Equal(t, 1, GridDimensions{}.FloorArea())
}

func TestParsedMap_Cells(t *testing.T) {
	m := &ParsedMap{
		Obstacles: []Position{{X: 1, Y: 2, Z: 0}},
		Survivors: []Survivor{{Position: Position{X: 3, Y: 3, Z: 1}, Heat: 36.5, LocationType: "edge"}},
	}

	cells := m.Cells()
	require.Len(t, cells, 2)

	assert.Equal(t, CellObstacle, cells[0].Kind)
	assert.Nil(t, cells[0].Survivor)
	assert.Equal(t, Position{X: 1, Y: 2, Z: 0}, cells[0].Position)

	assert.Equal(t, CellSurvivor, cells[1].Kind)
	require.NotNil(t, cells[1].Survivor)
	assert.Equal(t, "edge", cells[1].Survivor.LocationType)
	assert.Equal(t, cells[1].Survivor.Position, cells[1].Position)
}

func TestParsedMap_SurvivorDiscrepancy(t *testing.T) {
	m := &ParsedMap{ExpectedSurvivors: 3, Survivors: make([]Survivor, 1)}
	assert.Equal(t, -2, m.SurvivorDiscrepancy())

	m.ExpectedSurvivors = 1
	assert.Zero(t, m.SurvivorDiscrepancy())
}

func TestTemperatureBuckets_Band(t *testing.T) {
	b := TemperatureBuckets{
		Low:    []Survivor{{Heat: 30}},
		Normal: []Survivor{{Heat: 36}, {Heat: 37}},
	}

	assert.Equal(t, 3, b.Len())
	assert.Len(t, b.Band(TemperatureLow), 1)
	assert.Len(t, b.Band(TemperatureNormal), 2)
	assert.Empty(t, b.Band(TemperatureHigh))
}

func TestClassJSON(t *testing.T) {
	data, err := json.Marshal(FloorRecord{Floor: 1, DensityClass: DensityMedium})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"density_class":"medium"`)

	data, err = json.Marshal(TemperatureHigh)
	require.NoError(t, err)
	assert.Equal(t, `"high"`, string(data))
}

// TestParseError tests error matching and transience
func TestParseError(t *testing.T) {
	notFound := &ParseError{Kind: ErrFileNotFound, Path: "data/missing.txt", Err: fs.ErrNotExist}
	assert.True(t, errors.Is(notFound, ErrFileNotFound))
	assert.True(t, errors.Is(notFound, fs.ErrNotExist))
	assert.False(t, errors.Is(notFound, ErrIO))
	assert.False(t, notFound.IsTransient())
	assert.Contains(t, notFound.Error(), "data/missing.txt")

	ioErr := &ParseError{Kind: ErrIO, Path: "data/map.txt"}
	assert.True(t, errors.Is(ioErr, ErrIO))
	assert.True(t, ioErr.IsTransient())
	assert.Equal(t, "map file read failed: data/map.txt", ioErr.Error())
}

// TestValidationError tests error handling
func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:   "WIDTH",
		Value:   "abc",
		Message: "invalid header value",
	}

	if err.Error() != "invalid header value" {
		t.Errorf("Error() = %v, want %v", err.Error(), "invalid header value")
	}

	if err.IsTransient() {
		t.Error("ValidationError should not be transient")
	}
}
