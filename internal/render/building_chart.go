package render

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"rescue-map/internal/models"
)

const (
	buildingChartWidth  = 16 * vg.Inch
	buildingChartHeight = 12 * vg.Inch

	// receding axis of the oblique projection
	depthShiftX = 0.5
	depthShiftY = 0.35
)

// projection maps grid coordinates onto the page with a cabinet-style
// oblique view: y recedes up and to the right, floors stack vertically.
type projection struct {
	floorStep float64
}

func newProjection(d models.GridDimensions) projection {
	return projection{floorStep: depthShiftY*float64(max(d.Height, 1)) + 1}
}

func (pr projection) point(x, y, z float64) plotter.XY {
	return plotter.XY{
		X: x + depthShiftX*y,
		Y: z*pr.floorStep + depthShiftY*y,
	}
}

// CollapsedBuildingChart writes an oblique 3D view of the grid: floor frames,
// debris, and survivors coloured by temperature band and sized by CO2 class.
// stats may be nil when there are no survivors.
func CollapsedBuildingChart(w io.Writer, m *models.ParsedMap, buckets models.TemperatureBuckets, stats *models.SurvivorStatistics) error {
	d := m.Dimensions
	pr := newProjection(d)

	p := plot.New()
	p.Title.Text = fmt.Sprintf(
		"Color indicates body temperature | Size indicates CO₂ level\nBuilding Dimensions: %d×%d×%dm | Survivors: %d | Debris: %d",
		d.Width, d.Height, d.Depth, len(m.Survivors), len(m.Obstacles))
	p.X.Label.Text = "X Position (m) + receding Y"
	p.Y.Label.Text = "Floor Level"
	p.Add(plotter.NewGrid())

	if d.Width > 0 && d.Height > 0 && d.Depth > 0 {
		frame, err := buildingFrame(d, pr)
		if err != nil {
			return fmt.Errorf("building frame: %w", err)
		}
		p.Add(frame...)
	}

	if len(m.Obstacles) > 0 {
		debris, err := debrisScatter(m.Obstacles, pr)
		if err != nil {
			return fmt.Errorf("debris: %w", err)
		}
		p.Add(debris)
		p.Legend.Add(fmt.Sprintf("Debris (%d)", len(m.Obstacles)), debris)
	}

	for _, band := range models.TemperatureBands {
		survivors := buckets.Band(band)
		if len(survivors) == 0 {
			continue
		}
		sc, err := survivorScatter(survivors, band, pr)
		if err != nil {
			return fmt.Errorf("%s survivors: %w", band, err)
		}
		p.Add(sc)
		p.Legend.Add(band.Label(), sc)
	}

	p.Legend.Top = true
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	top := pr.point(float64(max(d.Width, 1)), float64(max(d.Height, 1)), float64(max(d.Depth, 1)))
	p.X.Min = min(p.X.Min, -0.5)
	p.X.Max = max(p.X.Max, top.X+0.5)
	p.Y.Min = min(p.Y.Min, -0.5)
	p.Y.Max = max(p.Y.Max, top.Y+0.5)

	return writePNG(w, buildingChartWidth, buildingChartHeight, func(dc draw.Canvas) {
		body := drawSuptitle(dc, p.Title.TextStyle, "3D Visualization of Collapsed Building with Survivors")
		p.Draw(body)
		if stats != nil {
			drawInfoBox(body, p.Title.TextStyle, statisticsLines(*stats))
		}
	})
}

// buildingFrame outlines every floor slab and the four corner pillars
func buildingFrame(d models.GridDimensions, pr projection) ([]plot.Plotter, error) {
	w, h := float64(d.Width), float64(d.Height)
	var out []plot.Plotter

	for z := 0; z <= d.Depth; z++ {
		fz := float64(z)
		outline, err := plotter.NewLine(plotter.XYs{
			pr.point(0, 0, fz), pr.point(w, 0, fz), pr.point(w, h, fz), pr.point(0, h, fz), pr.point(0, 0, fz),
		})
		if err != nil {
			return nil, err
		}
		outline.Color = buildingColor
		outline.Width = vg.Points(1)
		out = append(out, outline)
	}

	for _, x := range []float64{0, w} {
		for _, y := range []float64{0, h} {
			pillar, err := plotter.NewLine(plotter.XYs{pr.point(x, y, 0), pr.point(x, y, float64(d.Depth))})
			if err != nil {
				return nil, err
			}
			pillar.Color = buildingColor
			pillar.Width = vg.Points(1.5)
			out = append(out, pillar)
		}
	}
	return out, nil
}

func debrisScatter(obstacles []models.Position, pr projection) (*plotter.Scatter, error) {
	xys := make(plotter.XYs, len(obstacles))
	for i, o := range obstacles {
		xys[i] = pr.point(float64(o.X), float64(o.Y), float64(o.Z))
	}

	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle = draw.GlyphStyle{Color: debrisColor, Radius: radius(debrisArea(0)), Shape: draw.BoxGlyph{}}
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: debrisColor, Radius: radius(debrisArea(obstacles[i].Z)), Shape: draw.BoxGlyph{}}
	}
	return sc, nil
}

func survivorScatter(survivors []models.Survivor, band models.TemperatureBand, pr projection) (*plotter.Scatter, error) {
	xys := make(plotter.XYs, len(survivors))
	for i, s := range survivors {
		xys[i] = pr.point(float64(s.Position.X), float64(s.Position.Y), float64(s.Position.Z))
	}

	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	c := bandColor(band)
	sc.GlyphStyle = draw.GlyphStyle{Color: c, Radius: radius(markerArea(models.SizeMedium)), Shape: draw.CircleGlyph{}}
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: c, Radius: radius(markerArea(models.ClassifyCO2(survivors[i].CO2))), Shape: draw.CircleGlyph{}}
	}
	return sc, nil
}

func statisticsLines(s models.SurvivorStatistics) []string {
	return []string{
		"SURVIVOR STATISTICS",
		fmt.Sprintf("Avg Temp: %.1f°C", s.MeanHeat),
		fmt.Sprintf("Temp Range: %.1f-%.1f°C", s.MinHeat, s.MaxHeat),
		fmt.Sprintf("Avg CO₂: %.0f ppm", s.MeanCO2),
		"",
		"COLOR LEGEND:",
		"Blue: Low Temp (<36°C)",
		"Green: Normal Temp",
		"Red: High Temp (>37.5°C)",
		"",
		"SIZE INDICATES:",
		"Small: CO₂ < 500 ppm",
		"Medium: 500-1000 ppm",
		"Large: CO₂ > 1000 ppm",
	}
}

// drawInfoBox paints a boxed block of text in the upper left corner of c
func drawInfoBox(c draw.Canvas, base draw.TextStyle, lines []string) {
	sty := base
	sty.Font.Size = vg.Points(9)
	sty.XAlign = draw.XLeft
	sty.YAlign = draw.YTop

	pad := vg.Points(6)
	lineHeight := sty.Height("Mg") * 1.2
	var width vg.Length
	for _, l := range lines {
		width = max(width, sty.Width(l))
	}

	x0 := c.Min.X + vg.Points(60)
	y1 := c.Max.Y - vg.Points(40)
	x1 := x0 + width + 2*pad
	y0 := y1 - lineHeight*vg.Length(len(lines)) - 2*pad

	box := []vg.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}
	c.FillPolygon(infoBoxColor, box)
	c.StrokeLines(draw.LineStyle{Color: infoEdgeColor, Width: vg.Points(1.5)}, box)

	for i, l := range lines {
		c.FillText(sty, vg.Point{X: x0 + pad, Y: y1 - pad - lineHeight*vg.Length(i)}, l)
	}
}
