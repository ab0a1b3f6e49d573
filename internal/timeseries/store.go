package timeseries

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCapacity matches the dashboard's 100-row chart window.
const DefaultCapacity = 100

// ErrEmptyStore is returned by reads that need at least one sample.
var ErrEmptyStore = errors.New("timeseries: store is empty")

// Sample is one (timestamp, price) observation.
type Sample struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// Store keeps the most recent samples in arrival order.
// The backing ring never grows past its capacity.
type Store struct {
	mu    sync.RWMutex
	ring  []Sample
	head  int
	count int
}

// NewStore creates a store; non-positive capacity falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{ring: make([]Sample, capacity)}
}

// Capacity returns the window size.
func (s *Store) Capacity() int {
	return len(s.ring)
}

// Append inserts at the tail and evicts the oldest sample once full.
func (s *Store) Append(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail := (s.head + s.count) % len(s.ring)
	s.ring[tail] = sample
	if s.count < len(s.ring) {
		s.count++
		return
	}
	s.head = (s.head + 1) % len(s.ring)
}

// Recent returns up to n of the newest samples, oldest first.
func (s *Store) Recent(n int) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentLocked(n)
}

// Snapshot copies the whole window under a single read lock.
func (s *Store) Snapshot() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentLocked(s.count)
}

func (s *Store) recentLocked(n int) []Sample {
	if n > s.count {
		n = s.count
	}
	if n <= 0 {
		return []Sample{}
	}

	out := make([]Sample, n)
	start := s.head + s.count - n
	for i := 0; i < n; i++ {
		out[i] = s.ring[(start+i)%len(s.ring)]
	}
	return out
}

// Len returns the number of retained samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// IsEmpty reports whether no sample has been retained.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Latest returns the newest sample.
func (s *Store) Latest() (Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return Sample{}, ErrEmptyStore
	}
	return s.ring[(s.head+s.count-1)%len(s.ring)], nil
}

// OldestInWindow returns the oldest retained sample.
func (s *Store) OldestInWindow() (Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return Sample{}, ErrEmptyStore
	}
	return s.ring[s.head], nil
}
