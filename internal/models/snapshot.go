package models

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is a persisted summary of one parsed map
type Snapshot struct {
	ID                uuid.UUID `json:"id" db:"id"`
	SourcePath        string    `json:"source_path" db:"source_path"`
	Width             int       `json:"width" db:"width"`
	Height            int       `json:"height" db:"height"`
	Depth             int       `json:"depth" db:"depth"`
	ExpectedSurvivors int       `json:"expected_survivors" db:"expected_survivors"`
	SurvivorCount     int       `json:"survivor_count" db:"survivor_count"`
	ObstacleCount     int       `json:"obstacle_count" db:"obstacle_count"`
	SkippedLines      int       `json:"skipped_lines" db:"skipped_lines"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// NewSnapshot summarises m under a fresh id
func NewSnapshot(m *ParsedMap, now time.Time) *Snapshot {
	return &Snapshot{
		ID:                uuid.New(),
		SourcePath:        m.SourcePath,
		Width:             m.Dimensions.Width,
		Height:            m.Dimensions.Height,
		Depth:             m.Dimensions.Depth,
		ExpectedSurvivors: m.ExpectedSurvivors,
		SurvivorCount:     len(m.Survivors),
		ObstacleCount:     len(m.Obstacles),
		SkippedLines:      m.Lines.Skipped,
		CreatedAt:         now.UTC(),
	}
}

// Dimensions returns the stored grid size
func (s *Snapshot) Dimensions() GridDimensions {
	return GridDimensions{Width: s.Width, Height: s.Height, Depth: s.Depth}
}
