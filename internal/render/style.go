package render

import (
	"fmt"
	"image/color"
	"math"

	"golang.org/x/image/colornames"
	"gonum.org/v1/plot/vg"

	"rescue-map/internal/models"
)

// Output file names written by Renderer.Render
const (
	FloorDistributionFile = "floor_distribution.png"
	CollapsedBuildingFile = "3D_CollapsedBuilding.png"
	Building3DPageFile    = "3D_CollapsedBuilding.html"
)

// Artifact labels used in logs and metrics
const (
	ArtifactFloorDistribution = "floor_distribution"
	ArtifactCollapsedBuilding = "collapsed_building"
	ArtifactBuilding3D        = "building_3d"
)

var (
	debrisColor   = color.RGBA{R: 0x65, G: 0x43, B: 0x21, A: 0xff}
	buildingColor = color.NRGBA{R: 0x8b, G: 0x73, B: 0x55, A: 0x66}
	infoBoxColor  = colornames.Lightyellow
	infoEdgeColor = colornames.Goldenrod

	survivorBarColor = colornames.Red
	debrisBarColor   = colornames.Brown
)

// bandColor maps a temperature band to its marker colour
func bandColor(b models.TemperatureBand) color.Color {
	switch b {
	case models.TemperatureLow:
		return colornames.Dodgerblue
	case models.TemperatureNormal:
		return colornames.Limegreen
	default:
		return colornames.Orangered
	}
}

// densityColor maps a density class to its bar colour
func densityColor(c models.DensityClass) color.Color {
	switch c {
	case models.DensityLow:
		return colornames.Green
	case models.DensityMedium:
		return colornames.Orange
	default:
		return colornames.Red
	}
}

// markerArea is the survivor marker area in square points per CO2 class
func markerArea(c models.SizeClass) float64 {
	switch c {
	case models.SizeSmall:
		return 120
	case models.SizeMedium:
		return 180
	default:
		return 250
	}
}

// debrisArea grows with the floor index
func debrisArea(z int) float64 {
	return math.Max(20+float64(z)*5, 4)
}

// radius converts a marker area to a glyph radius
func radius(area float64) vg.Length {
	return vg.Points(math.Sqrt(area) / 2)
}

// diameter converts a marker area to a pixel size for HTML charts
func diameter(area float64) int {
	return int(math.Round(math.Sqrt(area)))
}

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02X%02X%02X", r>>8, g>>8, b>>8)
}
