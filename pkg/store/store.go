// Package store opens the SQL database behind access grants and session
// tallies. Postgres is the production dialect; SQLite serves lite mode.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax and DDL.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DialectFor infers the dialect from a DSN.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Rebind rewrites ? placeholders into the dialect's form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

//go:embed schema_sqlite.sql
var sqliteSchema string

// Open connects to dsn. SQLite databases get their schema applied on open;
// Postgres schemas are managed by Migrate.
func Open(ctx context.Context, dsn string) (*sql.DB, Dialect, error) {
	d := DialectFor(dsn)
	switch d {
	case Postgres:
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, d, fmt.Errorf("failed to open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, d, fmt.Errorf("failed to ping postgres: %w", err)
		}
		return db, d, nil
	default:
		path := strings.TrimPrefix(dsn, "sqlite://")
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, d, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// A single connection keeps :memory: databases coherent and
		// serializes writers.
		db.SetMaxOpenConns(1)
		if err := EnsureSQLiteSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, d, err
		}
		return db, d, nil
	}
}

// EnsureSQLiteSchema creates the lite-mode tables if they are missing.
func EnsureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to init sqlite schema: %w", err)
	}
	return nil
}
