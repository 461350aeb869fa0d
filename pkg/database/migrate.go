package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"rescue-map/pkg/logging"
)

// MigrateUp applies every pending migration in dir.
// It returns nil when the schema is already current.
func (p *PostgresDB) MigrateUp(dir string) error {
	m, err := p.newMigrate(dir)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration
func (p *PostgresDB) MigrateDown(dir string) error {
	m, err := p.newMigrate(dir)
	if err != nil {
		return err
	}

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied version and dirty flag.
// A database with no migrations reports version 0.
func (p *PostgresDB) MigrateVersion(dir string) (uint, bool, error) {
	m, err := p.newMigrate(dir)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// newMigrate binds golang-migrate to this pool. The instance is not closed
// because closing it would close the shared connection.
func (p *PostgresDB) newMigrate(dir string) (*migrate.Migrate, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(p.db.DB, &postgres.Config{DatabaseName: p.config.Database})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(absPath), "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{logger: p.logger}

	return m, nil
}

// migrateLogger forwards golang-migrate output to the structured logger
type migrateLogger struct {
	logger *logging.StructuredLogger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(context.Background(), "[MIGRATE] "+strings.TrimSpace(fmt.Sprintf(format, v...)), nil)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
