package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rescue-map/internal/models"
	"rescue-map/pkg/database"
	"rescue-map/pkg/logging"
	"rescue-map/pkg/metrics"
)

// SnapshotRepository persists parsed maps and their per-floor aggregates
type SnapshotRepository interface {
	// Snapshot operations
	CreateSnapshot(ctx context.Context, m *models.ParsedMap, floors []models.FloorRecord) (*models.Snapshot, error)
	GetSnapshot(ctx context.Context, id uuid.UUID) (*models.Snapshot, error)
	ListSnapshots(ctx context.Context, limit, offset int) ([]*models.Snapshot, error)

	// Content operations
	GetFloorRecords(ctx context.Context, id uuid.UUID) ([]models.FloorRecord, error)
	LoadMap(ctx context.Context, id uuid.UUID) (*models.ParsedMap, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// cellRow is one snapshot_cells row. Survivor columns are NULL for obstacles.
type cellRow struct {
	Kind         models.CellKind `db:"kind"`
	X            int             `db:"x"`
	Y            int             `db:"y"`
	Z            int             `db:"z"`
	Priority     sql.NullInt64   `db:"priority"`
	Heat         sql.NullFloat64 `db:"heat"`
	CO2          sql.NullFloat64 `db:"co2"`
	Confidence   sql.NullInt64   `db:"confidence"`
	LocationType sql.NullString  `db:"location_type"`
}

// snapshotRepository implements SnapshotRepository
type snapshotRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) SnapshotRepository {
	return &snapshotRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// CreateSnapshot stores m, its cells and floors in a single transaction
func (r *snapshotRepository) CreateSnapshot(ctx context.Context, m *models.ParsedMap, floors []models.FloorRecord) (*models.Snapshot, error) {
	snap := models.NewSnapshot(m, r.now())
	rows := cellRows(m)

	timer := r.metrics.NewTimer(r.metrics.DBQueryDuration.WithLabelValues("create_snapshot"))
	defer func() {
		duration := timer.ObserveDuration()
		r.logger.Debug(ctx, "[REPO_CREATE_SNAPSHOT] Snapshot insert finished", logging.Fields{
			"snapshot_id": snap.ID.String(),
			"cells":       len(rows),
			"floors":      len(floors),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO map_snapshots (
			id, source_path, width, height, depth,
			expected_survivors, survivor_count, obstacle_count, skipped_lines,
			created_at
		)
		VALUES (
			:id, :source_path, :width, :height, :depth,
			:expected_survivors, :survivor_count, :obstacle_count, :skipped_lines,
			:created_at
		)
	`, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	cellStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_cells (
			snapshot_id, kind, x, y, z,
			priority, heat, co2, confidence, location_type
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare cell statement: %w", err)
	}
	defer cellStmt.Close()

	for _, c := range rows {
		_, err := cellStmt.ExecContext(ctx,
			snap.ID, int(c.Kind), c.X, c.Y, c.Z,
			c.Priority, c.Heat, c.CO2, c.Confidence, c.LocationType,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert cell: %w", err)
		}
	}

	floorStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_floors (snapshot_id, floor, survivor_count, obstacle_count, density)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare floor statement: %w", err)
	}
	defer floorStmt.Close()

	for _, f := range floors {
		if _, err := floorStmt.ExecContext(ctx, snap.ID, f.Floor, f.SurvivorCount, f.ObstacleCount, f.Density); err != nil {
			return nil, fmt.Errorf("failed to insert floor %d: %w", f.Floor, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info(ctx, "[REPO_SNAPSHOT_SAVED] Map snapshot persisted", logging.Fields{
		"snapshot_id": snap.ID.String(),
		"survivors":   snap.SurvivorCount,
		"obstacles":   snap.ObstacleCount,
	})

	return snap, nil
}

// GetSnapshot retrieves a snapshot summary by ID
func (r *snapshotRepository) GetSnapshot(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	query := `
		SELECT id, source_path, width, height, depth,
			expected_survivors, survivor_count, obstacle_count, skipped_lines,
			created_at
		FROM map_snapshots
		WHERE id = $1
	`

	var snap models.Snapshot
	err := r.db.GetContext(ctx, "get_snapshot", &snap, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "map_snapshot",
			ID:       id.String(),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return &snap, nil
}

// ListSnapshots retrieves snapshots newest first with pagination
func (r *snapshotRepository) ListSnapshots(ctx context.Context, limit, offset int) ([]*models.Snapshot, error) {
	query := `
		SELECT id, source_path, width, height, depth,
			expected_survivors, survivor_count, obstacle_count, skipped_lines,
			created_at
		FROM map_snapshots
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	snapshots := []*models.Snapshot{}
	if err := r.db.SelectContext(ctx, "list_snapshots", &snapshots, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	return snapshots, nil
}

// GetFloorRecords retrieves the stored per-floor aggregates of a snapshot
func (r *snapshotRepository) GetFloorRecords(ctx context.Context, id uuid.UUID) ([]models.FloorRecord, error) {
	if _, err := r.GetSnapshot(ctx, id); err != nil {
		return nil, err
	}

	query := `
		SELECT floor, survivor_count, obstacle_count, density
		FROM snapshot_floors
		WHERE snapshot_id = $1
		ORDER BY floor
	`

	var floors []models.FloorRecord
	if err := r.db.SelectContext(ctx, "get_floor_records", &floors, query, id); err != nil {
		return nil, fmt.Errorf("failed to get floor records: %w", err)
	}

	return classifyFloors(floors), nil
}

// LoadMap rebuilds the parsed map stored under id
func (r *snapshotRepository) LoadMap(ctx context.Context, id uuid.UUID) (*models.ParsedMap, error) {
	snap, err := r.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT kind, x, y, z, priority, heat, co2, confidence, location_type
		FROM snapshot_cells
		WHERE snapshot_id = $1
		ORDER BY id
	`

	var rows []cellRow
	if err := r.db.SelectContext(ctx, "load_map_cells", &rows, query, id); err != nil {
		return nil, fmt.Errorf("failed to load snapshot cells: %w", err)
	}

	return rebuildMap(snap, rows), nil
}

// HealthCheck checks the health of the database connection
func (r *snapshotRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// cellRows flattens m into insertable rows, obstacles first
func cellRows(m *models.ParsedMap) []cellRow {
	rows := make([]cellRow, 0, len(m.Obstacles)+len(m.Survivors))
	for _, p := range m.Obstacles {
		rows = append(rows, cellRow{Kind: models.CellObstacle, X: p.X, Y: p.Y, Z: p.Z})
	}
	for _, s := range m.Survivors {
		rows = append(rows, cellRow{
			Kind:         models.CellSurvivor,
			X:            s.Position.X,
			Y:            s.Position.Y,
			Z:            s.Position.Z,
			Priority:     sql.NullInt64{Int64: int64(s.Priority), Valid: true},
			Heat:         sql.NullFloat64{Float64: s.Heat, Valid: true},
			CO2:          sql.NullFloat64{Float64: s.CO2, Valid: true},
			Confidence:   sql.NullInt64{Int64: int64(s.Confidence), Valid: true},
			LocationType: sql.NullString{String: s.LocationType, Valid: true},
		})
	}
	return rows
}

// rebuildMap is the inverse of cellRows. Line statistics other than the
// skipped count are not stored and stay zero.
func rebuildMap(snap *models.Snapshot, rows []cellRow) *models.ParsedMap {
	m := &models.ParsedMap{
		SourcePath:        snap.SourcePath,
		Dimensions:        snap.Dimensions(),
		ExpectedSurvivors: snap.ExpectedSurvivors,
		Obstacles:         []models.Position{},
		Survivors:         []models.Survivor{},
		Lines:             models.LineStats{Skipped: snap.SkippedLines},
	}

	for _, row := range rows {
		pos := models.Position{X: row.X, Y: row.Y, Z: row.Z}
		switch row.Kind {
		case models.CellObstacle:
			m.Obstacles = append(m.Obstacles, pos)
		case models.CellSurvivor:
			m.Survivors = append(m.Survivors, models.Survivor{
				Position:     pos,
				Priority:     int(row.Priority.Int64),
				Heat:         row.Heat.Float64,
				CO2:          row.CO2.Float64,
				Confidence:   int(row.Confidence.Int64),
				LocationType: row.LocationType.String,
			})
		}
	}

	m.Lines.Obstacles = len(m.Obstacles)
	m.Lines.Survivors = len(m.Survivors)
	return m
}

// classifyFloors fills the density class, which is derived and not stored
func classifyFloors(floors []models.FloorRecord) []models.FloorRecord {
	if floors == nil {
		return []models.FloorRecord{}
	}
	for i := range floors {
		floors[i].DensityClass = models.ClassifyDensity(floors[i].Density)
	}
	return floors
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
