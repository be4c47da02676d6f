package tally

import (
	"context"
	"sync"
	"time"
)

type session struct {
	cases  int64
	counts Counts
	gaps   map[string]int64
	seen   time.Time
}

// MemoryStore keeps tallies in process. Sessions idle longer than the TTL
// are dropped.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	topN     int
	now      func() time.Time
}

// NewMemoryStore returns a store; a ttl of zero keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		topN:     DefaultTopGaps,
		now:      time.Now,
	}
}

func (m *MemoryStore) Record(_ context.Context, sessionID string, e Entry) error {
	if err := e.validate(sessionID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	s, ok := m.sessions[sessionID]
	if !ok {
		s = &session{gaps: make(map[string]int64)}
		m.sessions[sessionID] = s
	}
	s.cases++
	s.counts.add(e.Classification, 1)
	for _, g := range e.gaps() {
		s.gaps[g]++
	}
	s.seen = now
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (Tally, error) {
	if !ValidSession(sessionID) {
		return Tally{}, ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(m.now())

	t := Tally{SessionID: sessionID, TopGaps: []GapCount{}}
	if s, ok := m.sessions[sessionID]; ok {
		t.Cases = s.cases
		t.Classifications = s.counts
		t.TopGaps = Top(s.gaps, m.topN)
	}
	return t, nil
}

func (m *MemoryStore) sweep(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for id, s := range m.sessions {
		if now.Sub(s.seen) > m.ttl {
			delete(m.sessions, id)
		}
	}
}
