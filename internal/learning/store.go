package learning

import (
	"sync"
	"time"
)

// ParamSet is one immutable, versioned snapshot of the learned parameters.
// Readers hold the whole set so a signal is always scored against a single
// consistent version.
type ParamSet struct {
	Version    int        `json:"version"`
	Weights    Weights    `json:"weights"`
	Patterns   []Pattern  `json:"patterns"`
	Thresholds Thresholds `json:"thresholds"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Store hands out parameter snapshots and swaps in new versions atomically.
// Updates never mutate a published set.
type Store struct {
	mu  sync.RWMutex
	cur ParamSet
}

// NewStore starts at version 1 with the given parameters. Zero-value fields
// fall back to defaults.
func NewStore(w Weights, patterns []Pattern, th Thresholds) *Store {
	if len(w) == 0 {
		w = DefaultWeights()
	}
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	return &Store{cur: ParamSet{
		Version:    1,
		Weights:    w,
		Patterns:   patterns,
		Thresholds: th,
		UpdatedAt:  time.Now(),
	}}
}

// Snapshot returns the current parameter set.
func (s *Store) Snapshot() ParamSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// SetWeights publishes a new version with updated weights. Invalid weights
// are rejected by returning the unchanged current set and false.
func (s *Store) SetWeights(w Weights) (ParamSet, bool) {
	if !w.Valid() {
		return s.Snapshot(), false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur
	next.Version++
	next.Weights = w
	next.UpdatedAt = time.Now()
	s.cur = next
	return next, true
}

// SetPatterns publishes a new version with the given pattern list.
func (s *Store) SetPatterns(patterns []Pattern) ParamSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur
	next.Version++
	next.Patterns = patterns
	next.UpdatedAt = time.Now()
	s.cur = next
	return next
}

// SetThresholds publishes a new version with updated thresholds.
func (s *Store) SetThresholds(th Thresholds) ParamSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur
	next.Version++
	next.Thresholds = th
	next.UpdatedAt = time.Now()
	s.cur = next
	return next
}
