package access

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/focusforward/caseguard/pkg/privacy"
	"github.com/focusforward/caseguard/pkg/source"
)

const (
	// DefaultTTL is how long a registry snapshot is reused.
	DefaultTTL = 5 * time.Minute
	// DefaultFetchTimeout bounds one registry fetch.
	DefaultFetchTimeout = 10 * time.Second
)

// CachedChecker answers from a periodically refreshed snapshot of a CSV
// registry. Concurrent refreshes collapse into one fetch.
type CachedChecker struct {
	fetcher source.Fetcher
	uri     string
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	group singleflight.Group

	mu        sync.RWMutex
	grants    []Grant
	fetchedAt time.Time
}

// CachedOption configures a CachedChecker.
type CachedOption func(*CachedChecker)

// WithTTL sets the snapshot lifetime. Zero refetches on every check.
func WithTTL(d time.Duration) CachedOption {
	return func(c *CachedChecker) { c.ttl = d }
}

// WithFetchTimeout bounds each registry fetch.
func WithFetchTimeout(d time.Duration) CachedOption {
	return func(c *CachedChecker) { c.timeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CachedOption {
	return func(c *CachedChecker) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CachedOption {
	return func(c *CachedChecker) { c.logger = l }
}

func NewCachedChecker(fetcher source.Fetcher, uri string, opts ...CachedOption) *CachedChecker {
	c := &CachedChecker{
		fetcher: fetcher,
		uri:     uri,
		ttl:     DefaultTTL,
		timeout: DefaultFetchTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "access")
	return c
}

func (c *CachedChecker) HasActiveAccess(ctx context.Context, email string) bool {
	if NormalizeEmail(email) == "" {
		return false
	}
	grants, err := c.snapshot(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "access registry unavailable, denying",
			"email", privacy.Email(email), "error", err)
		return false
	}
	return Active(grants, email, c.now())
}

// Refresh forces a fetch of the registry.
func (c *CachedChecker) Refresh(ctx context.Context) error {
	_, err := c.load(ctx)
	return err
}

func (c *CachedChecker) snapshot(ctx context.Context) ([]Grant, error) {
	c.mu.RLock()
	grants, fetchedAt := c.grants, c.fetchedAt
	c.mu.RUnlock()

	if !fetchedAt.IsZero() && c.now().Sub(fetchedAt) < c.ttl {
		return grants, nil
	}
	return c.load(ctx)
}

func (c *CachedChecker) load(ctx context.Context) ([]Grant, error) {
	v, err, _ := c.group.Do(c.uri, func() (interface{}, error) {
		// The fetch is shared by every waiter, so it must outlive the
		// context of whichever caller started it.
		fctx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, c.timeout)
			defer cancel()
		}
		data, err := c.fetcher.Fetch(fctx, c.uri)
		if err != nil {
			return nil, fmt.Errorf("access: fetch registry: %w", err)
		}
		grants, err := ParseCSV(data)
		if err != nil {
			return nil, fmt.Errorf("access: parse registry: %w", err)
		}

		c.mu.Lock()
		c.grants = grants
		c.fetchedAt = c.now()
		c.mu.Unlock()

		c.logger.DebugContext(ctx, "access registry refreshed", "grants", len(grants))
		return grants, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Grant), nil
}
