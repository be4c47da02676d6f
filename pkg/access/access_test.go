package access

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusforward/caseguard/pkg/source"
	"github.com/focusforward/caseguard/pkg/store"
)

var today = time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

const registry = `email,expiry
doc@example.com,15-03-2026
Senior@Example.com , 01-01-2027
lapsed@example.com,14-03-2026
broken@example.com
bad-date@example.com,2026-03-20
,01-01-2030
`

func TestParseCSV(t *testing.T) {
	grants, err := ParseCSV([]byte(registry))
	require.NoError(t, err)
	require.Len(t, grants, 3)
	assert.Equal(t, "doc@example.com", grants[0].Email)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), grants[0].Expiry)
	assert.Equal(t, "Senior@Example.com", grants[1].Email)
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	grants, err := ParseCSV([]byte("email,expiry\n"))
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestActive(t *testing.T) {
	grants, err := ParseCSV([]byte(registry))
	require.NoError(t, err)

	tests := []struct {
		email string
		want  bool
	}{
		{"doc@example.com", true}, // expiry day itself counts
		{"  DOC@example.com ", true},
		{"senior@example.com", true},
		{"lapsed@example.com", false},
		{"broken@example.com", false},
		{"bad-date@example.com", false},
		{"stranger@example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, Active(grants, tt.email, today))
		})
	}
}

func TestGrant_ActiveOnIgnoresTimeOfDay(t *testing.T) {
	g := Grant{Email: "a@example.com", Expiry: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)}
	assert.True(t, g.ActiveOn(time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC)))
	assert.False(t, g.ActiveOn(time.Date(2026, 3, 16, 0, 0, 1, 0, time.UTC)))
}

type countingFetcher struct {
	calls atomic.Int32
	data  []byte
	err   error
	delay time.Duration
}

func (f *countingFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	return f.data, f.err
}

func TestCachedChecker(t *testing.T) {
	f := &countingFetcher{data: []byte(registry)}
	now := today
	c := NewCachedChecker(f, "mem://registry", WithTTL(time.Minute), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	assert.True(t, c.HasActiveAccess(ctx, "doc@example.com"))
	assert.False(t, c.HasActiveAccess(ctx, "lapsed@example.com"))
	assert.Equal(t, int32(1), f.calls.Load())

	now = now.Add(2 * time.Minute)
	assert.True(t, c.HasActiveAccess(ctx, "senior@example.com"))
	assert.Equal(t, int32(2), f.calls.Load())

	// Empty email never triggers a fetch.
	assert.False(t, c.HasActiveAccess(ctx, "   "))
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCachedChecker_FailsClosed(t *testing.T) {
	f := &countingFetcher{err: source.ErrNotFound}
	c := NewCachedChecker(f, "mem://registry", WithClock(func() time.Time { return today }))

	assert.False(t, c.HasActiveAccess(context.Background(), "doc@example.com"))
	require.ErrorIs(t, c.Refresh(context.Background()), source.ErrNotFound)
}

func TestCachedChecker_CollapsesConcurrentRefreshes(t *testing.T) {
	f := &countingFetcher{data: []byte(registry), delay: 50 * time.Millisecond}
	c := NewCachedChecker(f, "mem://registry", WithClock(func() time.Time { return today }))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, c.HasActiveAccess(context.Background(), "doc@example.com"))
		}()
	}
	wg.Wait()
	assert.Less(t, f.calls.Load(), int32(8))
}

// ctxFetcher waits for release or for its context to end.
type ctxFetcher struct {
	release chan struct{}
	data    []byte
}

func (f *ctxFetcher) Fetch(ctx context.Context, _ string) ([]byte, error) {
	select {
	case <-f.release:
		return f.data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCachedChecker_CancelledCallerDoesNotDenyWaiters(t *testing.T) {
	f := &ctxFetcher{release: make(chan struct{}), data: []byte(registry)}
	c := NewCachedChecker(f, "mem://registry", WithClock(func() time.Time { return today }))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan bool, 1)
	go func() { first <- c.HasActiveAccess(ctx, "doc@example.com") }()
	cancel()

	waiter := make(chan bool, 1)
	go func() { waiter <- c.HasActiveAccess(context.Background(), "doc@example.com") }()

	time.Sleep(20 * time.Millisecond)
	close(f.release)
	assert.True(t, <-first)
	assert.True(t, <-waiter)
}

func TestCachedChecker_FetchTimeoutFailsClosed(t *testing.T) {
	f := &ctxFetcher{release: make(chan struct{})}
	c := NewCachedChecker(f, "mem://registry",
		WithFetchTimeout(20*time.Millisecond), WithClock(func() time.Time { return today }))

	assert.False(t, c.HasActiveAccess(context.Background(), "doc@example.com"))
	require.ErrorIs(t, c.Refresh(context.Background()), context.DeadlineExceeded)
}

func TestSQLRegistry_Lookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r := NewSQLRegistry(db, store.Postgres, nil)
	r.now = func() time.Time { return today }
	query := regexp.QuoteMeta("SELECT 1 FROM access_grants WHERE email = $1 AND expiry >= $2 LIMIT 1")

	mock.ExpectQuery(query).
		WithArgs("doc@example.com", "2026-03-15").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	assert.True(t, r.HasActiveAccess(context.Background(), " Doc@Example.com"))

	mock.ExpectQuery(query).
		WithArgs("lapsed@example.com", "2026-03-15").
		WillReturnRows(sqlmock.NewRows([]string{"one"}))
	assert.False(t, r.HasActiveAccess(context.Background(), "lapsed@example.com"))

	mock.ExpectQuery(query).
		WithArgs("doc@example.com", "2026-03-15").
		WillReturnError(errors.New("connection refused"))
	assert.False(t, r.HasActiveAccess(context.Background(), "doc@example.com"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRegistry_Import(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r := NewSQLRegistry(db, store.Postgres, nil)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO access_grants (email, expiry) VALUES ($1, $2)")).
		WithArgs("doc@example.com", "2026-03-15").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = r.Import(context.Background(), []Grant{
		{Email: "Doc@example.com", Expiry: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{Email: "  ", Expiry: today},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRegistry_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, d, err := store.Open(ctx, "sqlite://:memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r := NewSQLRegistry(db, d, nil)
	r.now = func() time.Time { return today }

	grants, err := ParseCSV([]byte(registry))
	require.NoError(t, err)
	require.NoError(t, r.Import(ctx, grants))

	assert.True(t, r.HasActiveAccess(ctx, "doc@example.com"))
	assert.True(t, r.HasActiveAccess(ctx, "SENIOR@example.com"))
	assert.False(t, r.HasActiveAccess(ctx, "lapsed@example.com"))
	assert.False(t, r.HasActiveAccess(ctx, "stranger@example.com"))
}
