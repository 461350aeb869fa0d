package render

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"rescue-map/internal/models"
)

const (
	floorChartWidth  = 14 * vg.Inch
	floorChartHeight = 6 * vg.Inch
	countBarWidth    = 18
	densityBarWidth  = 30
)

// densityGuides are the dashed reference lines drawn on the density panel
var densityGuides = []struct {
	value float64
	label string
	class models.DensityClass
}{
	{models.MediumDensityLimit, "Low Density", models.DensityLow},
	{models.HighDensityLimit, "Medium Density", models.DensityMedium},
	{0.9, "High Density", models.DensityHigh},
}

// FloorDistributionChart writes a two-panel PNG: survivor and debris counts
// per floor, and debris density per floor coloured by density class.
func FloorDistributionChart(w io.Writer, m *models.ParsedMap, floors []models.FloorRecord) error {
	if len(floors) == 0 {
		return fmt.Errorf("floor distribution: %w", models.ErrEmptyInput)
	}

	names := make([]string, len(floors))
	for i, f := range floors {
		names[i] = fmt.Sprintf("Floor %d", f.Floor)
	}

	counts, err := floorCountPlot(floors, names)
	if err != nil {
		return fmt.Errorf("floor counts: %w", err)
	}
	density, err := floorDensityPlot(floors, names)
	if err != nil {
		return fmt.Errorf("floor density: %w", err)
	}

	title := fmt.Sprintf("Vertical Distribution Analysis - Total: %d Survivors, %d Debris",
		len(m.Survivors), len(m.Obstacles))

	return writePNG(w, floorChartWidth, floorChartHeight, func(dc draw.Canvas) {
		body := drawSuptitle(dc, counts.Title.TextStyle, title)
		tiles := draw.Tiles{Rows: 1, Cols: 2, PadX: vg.Points(20), PadLeft: vg.Points(8), PadRight: vg.Points(8), PadBottom: vg.Points(8)}
		canvases := plot.Align([][]*plot.Plot{{counts, density}}, tiles, body)
		counts.Draw(canvases[0][0])
		density.Draw(canvases[0][1])
	})
}

func floorCountPlot(floors []models.FloorRecord, names []string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Distribution of Survivors and Debris per Floor"
	p.X.Label.Text = "Floor Level"
	p.Y.Label.Text = "Count"
	p.Add(plotter.NewGrid())

	survivors := make(plotter.Values, len(floors))
	debris := make(plotter.Values, len(floors))
	for i, f := range floors {
		survivors[i] = float64(f.SurvivorCount)
		debris[i] = float64(f.ObstacleCount)
	}

	width := vg.Points(countBarWidth)
	survivorBars, err := plotter.NewBarChart(survivors, width)
	if err != nil {
		return nil, err
	}
	survivorBars.Color = survivorBarColor
	survivorBars.LineStyle.Width = 0
	survivorBars.Offset = -width / 2

	debrisBars, err := plotter.NewBarChart(debris, width)
	if err != nil {
		return nil, err
	}
	debrisBars.Color = debrisBarColor
	debrisBars.LineStyle.Width = 0
	debrisBars.Offset = width / 2

	survivorLabels, err := barLabels(survivors, -width/2)
	if err != nil {
		return nil, err
	}
	debrisLabels, err := barLabels(debris, width/2)
	if err != nil {
		return nil, err
	}

	p.Add(survivorBars, debrisBars, survivorLabels, debrisLabels)
	p.Legend.Add("Survivors", survivorBars)
	p.Legend.Add("Debris", debrisBars)
	p.Legend.Top = true
	p.NominalX(names...)
	p.X.Min, p.X.Max = -0.5, float64(len(floors))-0.5
	p.Y.Min = 0
	p.Y.Max = maxValue(survivors, debris)*1.15 + 1

	return p, nil
}

func floorDensityPlot(floors []models.FloorRecord, names []string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Debris Density per Floor"
	p.X.Label.Text = "Floor Level"
	p.Y.Label.Text = "Debris Density (obstacles/m²)"
	p.Add(plotter.NewGrid())

	// One chart per floor so each bar carries its own class colour
	densities := make(plotter.Values, len(floors))
	for i, f := range floors {
		densities[i] = f.Density
		bar, err := plotter.NewBarChart(plotter.Values{f.Density}, vg.Points(densityBarWidth))
		if err != nil {
			return nil, err
		}
		bar.XMin = float64(i)
		bar.Color = densityColor(f.DensityClass)
		bar.LineStyle.Width = 0
		p.Add(bar)
	}

	for _, g := range densityGuides {
		line := plotter.NewFunction(constant(g.value))
		line.XMin, line.XMax = -0.5, float64(len(floors))-0.5
		line.Color = densityColor(g.class)
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		p.Add(line)
		p.Legend.Add(g.label, line)
	}

	p.Legend.Top = true
	p.NominalX(names...)
	p.X.Min, p.X.Max = -0.5, float64(len(floors))-0.5
	p.Y.Min = 0
	p.Y.Max = max(maxValue(densities)*1.1, 1.0)

	return p, nil
}

// barLabels places each value just above its bar
func barLabels(values plotter.Values, offset vg.Length) (*plotter.Labels, error) {
	xys := make(plotter.XYs, len(values))
	labels := make([]string, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
		labels[i] = strconv.Itoa(int(v))
	}

	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return nil, err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = draw.XCenter
	}
	l.Offset = vg.Point{X: offset, Y: vg.Points(3)}
	return l, nil
}

func constant(v float64) func(float64) float64 {
	return func(float64) float64 { return v }
}

func maxValue(series ...plotter.Values) float64 {
	var m float64
	for _, s := range series {
		for _, v := range s {
			m = max(m, v)
		}
	}
	return m
}

// drawSuptitle writes a centred title across the top of dc and returns
// the canvas left underneath it.
func drawSuptitle(dc draw.Canvas, base draw.TextStyle, title string) draw.Canvas {
	sty := base
	sty.Font.Size = vg.Points(16)
	sty.XAlign = draw.XCenter
	sty.YAlign = draw.YTop
	sty.Color = color.Black

	top := dc.Max.Y - vg.Points(8)
	dc.FillText(sty, vg.Point{X: (dc.Min.X + dc.Max.X) / 2, Y: top}, title)

	body := dc
	body.Max.Y = top - sty.Height(title) - vg.Points(8)
	return body
}

// writePNG draws onto an in-memory image canvas and encodes it to w
func writePNG(w io.Writer, width, height vg.Length, paint func(draw.Canvas)) error {
	img := vgimg.New(width, height)
	dc := draw.New(img)
	dc.FillPolygon(color.White, []vg.Point{
		{X: dc.Min.X, Y: dc.Min.Y}, {X: dc.Max.X, Y: dc.Min.Y},
		{X: dc.Max.X, Y: dc.Max.Y}, {X: dc.Min.X, Y: dc.Max.Y},
	})
	paint(dc)

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
