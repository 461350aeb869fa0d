package models

import "encoding/json"

// Classification thresholds. Every tier is half-open: a value equal to a
// threshold belongs to the upper tier.
const (
	LowTemperatureLimit  = 36.0
	HighTemperatureLimit = 37.5

	MediumCO2Limit = 500.0
	LargeCO2Limit  = 1000.0

	MediumDensityLimit = 0.3
	HighDensityLimit   = 0.6
)

// TemperatureBand is the body-temperature tier of a survivor
type TemperatureBand int

const (
	TemperatureLow TemperatureBand = iota
	TemperatureNormal
	TemperatureHigh
)

// TemperatureBands lists the bands in ascending order
var TemperatureBands = []TemperatureBand{TemperatureLow, TemperatureNormal, TemperatureHigh}

func (b TemperatureBand) String() string {
	switch b {
	case TemperatureLow:
		return "low"
	case TemperatureNormal:
		return "normal"
	default:
		return "high"
	}
}

// Label is the legend text used by renderers
func (b TemperatureBand) Label() string {
	switch b {
	case TemperatureLow:
		return "Low Temp (<36°C)"
	case TemperatureNormal:
		return "Normal Temp (36-37.5°C)"
	default:
		return "High Temp (>=37.5°C)"
	}
}

// MarshalJSON encodes the band by name
func (b TemperatureBand) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// ClassifyTemperature maps a heat reading to its band. NaN falls through to high,
// so every reading lands in exactly one band.
func ClassifyTemperature(heat float64) TemperatureBand {
	switch {
	case heat < LowTemperatureLimit:
		return TemperatureLow
	case heat < HighTemperatureLimit:
		return TemperatureNormal
	default:
		return TemperatureHigh
	}
}

// SizeClass is the marker size tier derived from CO2 concentration
type SizeClass int

const (
	SizeSmall SizeClass = iota
	SizeMedium
	SizeLarge
)

func (s SizeClass) String() string {
	switch s {
	case SizeSmall:
		return "small"
	case SizeMedium:
		return "medium"
	default:
		return "large"
	}
}

// MarshalJSON encodes the class by name
func (s SizeClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ClassifyCO2 maps a CO2 reading in ppm to a marker size class
func ClassifyCO2(co2 float64) SizeClass {
	switch {
	case co2 < MediumCO2Limit:
		return SizeSmall
	case co2 < LargeCO2Limit:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// DensityClass is the debris density tier of a floor
type DensityClass int

const (
	DensityLow DensityClass = iota
	DensityMedium
	DensityHigh
)

func (d DensityClass) String() string {
	switch d {
	case DensityLow:
		return "low"
	case DensityMedium:
		return "medium"
	default:
		return "high"
	}
}

// MarshalJSON encodes the class by name
func (d DensityClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// ClassifyDensity maps obstacles-per-cell density to a tier
func ClassifyDensity(density float64) DensityClass {
	switch {
	case density < MediumDensityLimit:
		return DensityLow
	case density < HighDensityLimit:
		return DensityMedium
	default:
		return DensityHigh
	}
}
