package models

// GridDimensions holds the declared size of the building grid.
// A zero value means the header was absent.
type GridDimensions struct {
	Width  int `json:"width" db:"width"`
	Height int `json:"height" db:"height"`
	Depth  int `json:"depth" db:"depth"`
}

// FloorArea returns width*height, or 1 when either side is unset
// so density never divides by zero.
func (d GridDimensions) FloorArea() int {
	if d.Width > 0 && d.Height > 0 {
		return d.Width * d.Height
	}
	return 1
}

// Position is a cell coordinate. No bounds checking is applied;
// coordinates outside the declared grid are kept as written.
type Position struct {
	X int `json:"x" db:"x"`
	Y int `json:"y" db:"y"`
	Z int `json:"z" db:"z"`
}

// CellKind discriminates the cell union. Values match the type code
// used in map files.
type CellKind int

const (
	CellObstacle CellKind = 1
	CellSurvivor CellKind = 2
)

// String returns the lowercase name of the kind
func (k CellKind) String() string {
	switch k {
	case CellObstacle:
		return "obstacle"
	case CellSurvivor:
		return "survivor"
	default:
		return "unknown"
	}
}

// Survivor is a detected person with sensor readings
type Survivor struct {
	Position     Position `json:"position"`
	Priority     int      `json:"priority"`
	Heat         float64  `json:"heat"`
	CO2          float64  `json:"co2"`
	Confidence   int      `json:"confidence"`
	LocationType string   `json:"location_type"`
}

// Cell is either an obstacle or a survivor. Survivor is non-nil
// exactly when Kind is CellSurvivor.
type Cell struct {
	Kind     CellKind  `json:"kind"`
	Position Position  `json:"position"`
	Survivor *Survivor `json:"survivor,omitempty"`
}

// ObstacleCell builds an obstacle cell at p
func ObstacleCell(p Position) Cell {
	return Cell{Kind: CellObstacle, Position: p}
}

// SurvivorCell builds a survivor cell carrying s
func SurvivorCell(s Survivor) Cell {
	return Cell{Kind: CellSurvivor, Position: s.Position, Survivor: &s}
}

// LineStats counts how each line of a map file was classified.
type LineStats struct {
	Total     int `json:"total"`
	Headers   int `json:"headers"`
	Comments  int `json:"comments"`
	Blank     int `json:"blank"`
	NonData   int `json:"non_data"`
	Obstacles int `json:"obstacles"`
	Survivors int `json:"survivors"`
	// Skipped lines looked like data (or a header) but failed to parse.
	Skipped int `json:"skipped"`
	// Unclassified lines parsed but carried a type code other than 1 or 2.
	Unclassified int `json:"unclassified"`
}

// ParsedMap is one loaded map snapshot. It is built once by the parser
// and treated as read-only afterwards, so it can be shared freely.
type ParsedMap struct {
	SourcePath        string         `json:"source_path"`
	Dimensions        GridDimensions `json:"dimensions"`
	ExpectedSurvivors int            `json:"expected_survivors"`
	Obstacles         []Position     `json:"obstacles"`
	Survivors         []Survivor     `json:"survivors"`
	Lines             LineStats      `json:"lines"`
}

// SurvivorDiscrepancy returns parsed survivors minus the SURVIVORS= header.
// It is informational only.
func (m *ParsedMap) SurvivorDiscrepancy() int {
	return len(m.Survivors) - m.ExpectedSurvivors
}

// Cells returns the obstacles followed by the survivors as tagged cells.
func (m *ParsedMap) Cells() []Cell {
	cells := make([]Cell, 0, len(m.Obstacles)+len(m.Survivors))
	for _, p := range m.Obstacles {
		cells = append(cells, ObstacleCell(p))
	}
	for _, s := range m.Survivors {
		cells = append(cells, SurvivorCell(s))
	}
	return cells
}

// FloorRecord is the per-floor aggregate consumed by renderers
type FloorRecord struct {
	Floor         int          `json:"floor" db:"floor"`
	SurvivorCount int          `json:"survivor_count" db:"survivor_count"`
	ObstacleCount int          `json:"obstacle_count" db:"obstacle_count"`
	Density       float64      `json:"density" db:"density"`
	DensityClass  DensityClass `json:"density_class" db:"-"`
}

// TemperatureBuckets groups survivors by temperature band, preserving
// the input order inside each group.
type TemperatureBuckets struct {
	Low    []Survivor `json:"low"`
	Normal []Survivor `json:"normal"`
	High   []Survivor `json:"high"`
}

// Len returns the total number of bucketed survivors
func (b TemperatureBuckets) Len() int {
	return len(b.Low) + len(b.Normal) + len(b.High)
}

// Band returns the bucket for band
func (b TemperatureBuckets) Band(band TemperatureBand) []Survivor {
	switch band {
	case TemperatureLow:
		return b.Low
	case TemperatureNormal:
		return b.Normal
	default:
		return b.High
	}
}

// SurvivorStatistics summarises survivor sensor readings
type SurvivorStatistics struct {
	Count    int     `json:"count"`
	MeanHeat float64 `json:"mean_heat"`
	MinHeat  float64 `json:"min_heat"`
	MaxHeat  float64 `json:"max_heat"`
	MeanCO2  float64 `json:"mean_co2"`
}
