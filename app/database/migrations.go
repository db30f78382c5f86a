package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Schema: snapshots (one persisted store record per namespace) and
// refresh_runs (aggregation cycle history).
//
//go:embed migrations/*.sql
var schemaFS embed.FS

// ErrDirtySchema means an earlier migration stopped halfway. The database has
// to be repaired (or the file removed) before the server can start.
var ErrDirtySchema = errors.New("database schema is dirty")

// RunMigrations brings the schema up to date and returns the resulting
// version. A dirty schema is reported as ErrDirtySchema instead of being
// migrated further.
func RunMigrations(db *DB) (uint, bool, error) {
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return 0, false, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(schemaFS, "migrations")
	if err != nil {
		return 0, false, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	var dirtyErr migrate.ErrDirty
	switch {
	case errors.As(err, &dirtyErr):
		return uint(dirtyErr.Version), true, fmt.Errorf("%w at version %d", ErrDirtySchema, dirtyErr.Version)
	case errors.Is(err, migrate.ErrNoChange):
		slog.Debug("Database schema is up to date")
	case err != nil:
		return 0, false, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	return version, dirty, nil
}
