// Package access answers whether an email holds an unexpired access grant.
// Every lookup fails closed: any error reads as no access.
package access

import (
	"context"
	"strings"
	"time"
)

// DefaultRegistryURI is the published CSV export of the grant sheet.
const DefaultRegistryURI = "https://docs.google.com/spreadsheets/d/1NA4S23i9t_q9D40EaedCvuuoN2EJdnGpDbtQnhM86_M/export?format=csv&gid=0"

// Checker reports whether email currently holds access.
type Checker interface {
	HasActiveAccess(ctx context.Context, email string) bool
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, email string) bool

func (f CheckerFunc) HasActiveAccess(ctx context.Context, email string) bool {
	return f(ctx, email)
}

// Grant is one (email, expiry) row. Expiry is a calendar date and the day
// itself still counts as active.
type Grant struct {
	Email  string
	Expiry time.Time
}

// NormalizeEmail is the comparison form of an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Date truncates t to its calendar date in t's location, returned as UTC
// midnight so dates compare independent of zone.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ActiveOn reports whether g covers the calendar day of now.
func (g Grant) ActiveOn(now time.Time) bool {
	return !Date(g.Expiry).Before(Date(now))
}

// Active reports whether any grant for email is active on now.
func Active(grants []Grant, email string, now time.Time) bool {
	want := NormalizeEmail(email)
	if want == "" {
		return false
	}
	for _, g := range grants {
		if NormalizeEmail(g.Email) == want && g.ActiveOn(now) {
			return true
		}
	}
	return false
}
