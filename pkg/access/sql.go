package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/focusforward/caseguard/pkg/privacy"
	"github.com/focusforward/caseguard/pkg/store"
)

const dateLayout = "2006-01-02"

// SQLRegistry looks grants up in the access_grants table.
type SQLRegistry struct {
	db      *sql.DB
	dialect store.Dialect
	now     func() time.Time
	logger  *slog.Logger
}

func NewSQLRegistry(db *sql.DB, dialect store.Dialect, logger *slog.Logger) *SQLRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLRegistry{
		db:      db,
		dialect: dialect,
		now:     time.Now,
		logger:  logger.With("component", "access"),
	}
}

func (r *SQLRegistry) HasActiveAccess(ctx context.Context, email string) bool {
	ok, err := r.Lookup(ctx, email)
	if err != nil {
		r.logger.WarnContext(ctx, "access lookup failed, denying",
			"email", privacy.Email(email), "error", err)
		return false
	}
	return ok
}

// Lookup reports whether email holds a grant expiring today or later.
func (r *SQLRegistry) Lookup(ctx context.Context, email string) (bool, error) {
	e := NormalizeEmail(email)
	if e == "" {
		return false, nil
	}
	var one int
	err := r.db.QueryRowContext(ctx,
		r.dialect.Rebind("SELECT 1 FROM access_grants WHERE email = ? AND expiry >= ? LIMIT 1"),
		e, Date(r.now()).Format(dateLayout),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("access: lookup: %w", err)
	}
	return true, nil
}

// Import upserts grants in one transaction.
func (r *SQLRegistry) Import(ctx context.Context, grants []Grant) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("access: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := r.dialect.Rebind(`INSERT INTO access_grants (email, expiry) VALUES (?, ?)
		ON CONFLICT (email) DO UPDATE SET expiry = EXCLUDED.expiry`)
	for _, g := range grants {
		e := NormalizeEmail(g.Email)
		if e == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, q, e, Date(g.Expiry).Format(dateLayout)); err != nil {
			return fmt.Errorf("access: import %s: %w", privacy.MaskEmail(e), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("access: commit: %w", err)
	}
	return nil
}
