package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"rescue-map/internal/models"
)

// symbolSizeFromValue reads the marker size carried as the fourth value
const symbolSizeFromValue = "function (val) { return val[3]; }"

// Building3DPage writes an interactive HTML page with a rotatable 3D scatter
// of debris and survivors, one series per temperature band.
func Building3DPage(w io.Writer, m *models.ParsedMap, buckets models.TemperatureBuckets) error {
	d := m.Dimensions

	scatter := charts.NewScatter3D()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Collapsed Building 3D", Width: "1200px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "3D Visualization of Collapsed Building with Survivors",
			Subtitle: fmt.Sprintf("dimensions=%dx%dx%d survivors=%d debris=%d", d.Width, d.Height, d.Depth, len(m.Survivors), len(m.Obstacles)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%", Top: "5%"}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "X Position (m)", Show: opts.Bool(true), Min: 0, Max: max(d.Width, 1)}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Y Position (m)", Show: opts.Bool(true), Min: 0, Max: max(d.Height, 1)}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "Floor Level", Show: opts.Bool(true), Min: 0, Max: max(d.Depth, 1)}),
		charts.WithGrid3DOpts(opts.Grid3D{Show: opts.Bool(true)}),
	)

	if len(m.Obstacles) > 0 {
		data := make([]opts.Chart3DData, len(m.Obstacles))
		for i, o := range m.Obstacles {
			data[i] = opts.Chart3DData{Value: []interface{}{o.X, o.Y, o.Z, diameter(debrisArea(o.Z))}}
		}
		scatter.AddSeries(fmt.Sprintf("Debris (%d)", len(m.Obstacles)), data, scatterSeries(hexColor(debrisColor), "rect")...)
	}

	for _, band := range models.TemperatureBands {
		survivors := buckets.Band(band)
		if len(survivors) == 0 {
			continue
		}
		data := make([]opts.Chart3DData, len(survivors))
		for i, s := range survivors {
			data[i] = opts.Chart3DData{
				Name: fmt.Sprintf("%s heat=%.1f co2=%.0f", s.LocationType, s.Heat, s.CO2),
				Value: []interface{}{
					s.Position.X, s.Position.Y, s.Position.Z,
					diameter(markerArea(models.ClassifyCO2(s.CO2))),
				},
			}
		}
		scatter.AddSeries(band.Label(), data, scatterSeries(hexColor(bandColor(band)), "circle")...)
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render 3d page: %w", err)
	}
	return nil
}

func scatterSeries(color, symbol string) []charts.SeriesOpts {
	return []charts.SeriesOpts{
		charts.WithScatterChartOpts(opts.ScatterChart{
			CoordSystem: types.ChartCartesian3D,
			Symbol:      symbol,
			SymbolSize:  opts.FuncOpts(symbolSizeFromValue),
		}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
	}
}
