// Package tally keeps per-session review counters: cases reviewed,
// classification counts and recurring documentation gaps. Tallies are owned
// by the presentation layer and hold nothing but counts.
package tally

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/focusforward/caseguard/pkg/reconcile"
	"github.com/focusforward/caseguard/pkg/rules"
)

// DefaultTopGaps is how many recurring gaps a tally reports.
const DefaultTopGaps = 5

var (
	ErrInvalidSession = errors.New("tally: invalid session id")
	ErrInvalidTier    = errors.New("tally: invalid classification")
)

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidSession reports whether id is usable as a session key.
func ValidSession(id string) bool {
	return sessionPattern.MatchString(id)
}

// Entry is the part of a completed review that a tally counts.
type Entry struct {
	Classification rules.Tier
	Anchors        []string
}

// EntryFrom extracts the countable part of r.
func EntryFrom(r reconcile.ReviewResult) Entry {
	return Entry{Classification: r.Classification, Anchors: r.MissingAnchors}
}

// gaps returns the case-folded, de-duplicated anchors of e.
func (e Entry) gaps() []string {
	seen := make(map[string]bool, len(e.Anchors))
	out := make([]string, 0, len(e.Anchors))
	for _, a := range e.Anchors {
		k := strings.ToLower(strings.TrimSpace(a))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func (e Entry) validate(sessionID string) error {
	if !ValidSession(sessionID) {
		return fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}
	switch e.Classification {
	case rules.TierSafe, rules.TierBorderline, rules.TierDangerous:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTier, e.Classification)
	}
}

// Counts holds per-classification totals.
type Counts struct {
	Safe       int64 `json:"SAFE"`
	Borderline int64 `json:"BORDERLINE"`
	Dangerous  int64 `json:"DANGEROUS"`
}

func (c *Counts) add(t rules.Tier, n int64) {
	switch t {
	case rules.TierSafe:
		c.Safe += n
	case rules.TierBorderline:
		c.Borderline += n
	case rules.TierDangerous:
		c.Dangerous += n
	}
}

// GapCount is how often one anchor recurred.
type GapCount struct {
	Anchor string `json:"anchor"`
	Count  int64  `json:"count"`
}

// Tally is a session's counters. An unknown session reads as zero.
type Tally struct {
	SessionID       string     `json:"session_id"`
	Cases           int64      `json:"cases_reviewed"`
	Classifications Counts     `json:"classifications"`
	TopGaps         []GapCount `json:"top_gaps"`
}

// Store records completed reviews. Record is atomic per call and must only
// be invoked after a review succeeded.
type Store interface {
	Record(ctx context.Context, sessionID string, e Entry) error
	Get(ctx context.Context, sessionID string) (Tally, error)
}

// Top orders gaps by descending count, then anchor, and keeps n.
func Top(gaps map[string]int64, n int) []GapCount {
	out := make([]GapCount, 0, len(gaps))
	for a, c := range gaps {
		out = append(out, GapCount{Anchor: a, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Anchor < out[j].Anchor
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Summary renders a one-line session summary for terminals.
func (t Tally) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cases reviewed this session: %d (SAFE %d, BORDERLINE %d, DANGEROUS %d)",
		t.Cases, t.Classifications.Safe, t.Classifications.Borderline, t.Classifications.Dangerous)
	if len(t.TopGaps) > 0 {
		parts := make([]string, len(t.TopGaps))
		for i, g := range t.TopGaps {
			parts[i] = fmt.Sprintf("%s x%d", g.Anchor, g.Count)
		}
		b.WriteString("; recurring gaps: ")
		b.WriteString(strings.Join(parts, ", "))
	}
	return b.String()
}
