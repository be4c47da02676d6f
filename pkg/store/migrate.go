package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql
var migrations embed.FS

// Direction of a migration run.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// MigrationStatus is the schema version after a run.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// Migrate applies the embedded Postgres migrations. SQLite DSNs are
// rejected since lite mode creates its schema on open.
func Migrate(dsn string, dir Direction) (MigrationStatus, error) {
	if DialectFor(dsn) != Postgres {
		return MigrationStatus{}, fmt.Errorf("store: migrations require a postgres dsn")
	}
	src, err := iofs.New(migrations, "migrations/postgres")
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch dir {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	default:
		return MigrationStatus{}, fmt.Errorf("store: unknown migration direction %q", dir)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("failed to run %s migrations: %w", dir, err)
	}

	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, fmt.Errorf("failed to get version: %w", err)
	}
	return MigrationStatus{Version: v, Dirty: dirty}, nil
}
