// Package history keeps the recent country comparisons of each session.
package history

import (
	"slices"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

// Limit is the number of pairs a History retains.
const Limit = 10

// Pair is one comparison, in the order the user chose the countries.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// History is a bounded list of distinct pairs, oldest first. It is safe for
// concurrent use.
type History struct {
	pairs []Pair
	mu    sync.Mutex
}

// Add records p unless an identical pair is already present, in which case the
// existing entry keeps its position. The oldest pair is dropped beyond Limit.
// It reports whether p was added.
func (h *History) Add(p Pair) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if slices.Contains(h.pairs, p) {
		return false
	}
	h.pairs = append(h.pairs, p)
	if len(h.pairs) > Limit {
		h.pairs = slices.Delete(h.pairs, 0, len(h.pairs)-Limit)
	}
	return true
}

// Recent returns a copy of the retained pairs, oldest first.
func (h *History) Recent() []Pair {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.pairs)
}

// Len returns the number of retained pairs.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pairs)
}

// Store holds one History per session. Sessions idle for longer than the TTL are
// evicted, so histories never outlive the process or a forgotten browser tab.
type Store struct {
	cache *otter.Cache[string, *History]
	mu    sync.Mutex
}

// NewStore creates a store holding at most maxSessions histories.
func NewStore(maxSessions int, ttl time.Duration) *Store {
	return &Store{
		cache: otter.Must(&otter.Options[string, *History]{
			MaximumSize:      maxSessions,
			ExpiryCalculator: otter.ExpiryAccessing[string, *History](ttl),
		}),
	}
}

// Get returns the session's history, creating an empty one on first use.
func (s *Store) Get(sessionID string) *History {
	if h, ok := s.cache.GetIfPresent(sessionID); ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.cache.GetIfPresent(sessionID); ok {
		return h
	}
	h := &History{}
	s.cache.Set(sessionID, h)
	return h
}

// Sessions returns the approximate number of live sessions.
func (s *Store) Sessions() int {
	return s.cache.EstimatedSize()
}
