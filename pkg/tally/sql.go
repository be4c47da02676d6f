package tally

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/focusforward/caseguard/pkg/store"
)

// SQLStore keeps tallies in session_tallies and session_gaps.
type SQLStore struct {
	db      *sql.DB
	dialect store.Dialect
	topN    int
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, dialect store.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, topN: DefaultTopGaps, now: time.Now}
}

const upsertTally = `INSERT INTO session_tallies (session_id, cases, safe, borderline, dangerous, updated_at)
VALUES (?, 1, ?, ?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET
	cases = session_tallies.cases + 1,
	safe = session_tallies.safe + EXCLUDED.safe,
	borderline = session_tallies.borderline + EXCLUDED.borderline,
	dangerous = session_tallies.dangerous + EXCLUDED.dangerous,
	updated_at = EXCLUDED.updated_at`

const upsertGap = `INSERT INTO session_gaps (session_id, anchor, count)
VALUES (?, ?, 1)
ON CONFLICT (session_id, anchor) DO UPDATE SET count = session_gaps.count + 1`

func (s *SQLStore) Record(ctx context.Context, sessionID string, e Entry) error {
	if err := e.validate(sessionID); err != nil {
		return err
	}
	var c Counts
	c.add(e.Classification, 1)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tally: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.dialect.Rebind(upsertTally),
		sessionID, c.Safe, c.Borderline, c.Dangerous, s.now().UTC()); err != nil {
		return fmt.Errorf("tally: record: %w", err)
	}
	for _, g := range e.gaps() {
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(upsertGap), sessionID, g); err != nil {
			return fmt.Errorf("tally: record gap: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tally: commit: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, sessionID string) (Tally, error) {
	if !ValidSession(sessionID) {
		return Tally{}, ErrInvalidSession
	}
	t := Tally{SessionID: sessionID, TopGaps: []GapCount{}}

	err := s.db.QueryRowContext(ctx,
		s.dialect.Rebind("SELECT cases, safe, borderline, dangerous FROM session_tallies WHERE session_id = ?"),
		sessionID,
	).Scan(&t.Cases, &t.Classifications.Safe, &t.Classifications.Borderline, &t.Classifications.Dangerous)
	if errors.Is(err, sql.ErrNoRows) {
		return t, nil
	}
	if err != nil {
		return Tally{}, fmt.Errorf("tally: get: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.dialect.Rebind("SELECT anchor, count FROM session_gaps WHERE session_id = ? ORDER BY count DESC, anchor ASC LIMIT ?"),
		sessionID, s.topN,
	)
	if err != nil {
		return Tally{}, fmt.Errorf("tally: get gaps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var g GapCount
		if err := rows.Scan(&g.Anchor, &g.Count); err != nil {
			return Tally{}, fmt.Errorf("tally: scan gap: %w", err)
		}
		t.TopGaps = append(t.TopGaps, g)
	}
	if err := rows.Err(); err != nil {
		return Tally{}, fmt.Errorf("tally: get gaps: %w", err)
	}
	return t, nil
}
