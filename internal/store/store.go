// Package store keeps the in-memory listing collection shared between the
// ingestion pipeline and the query engine.
package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/autotrack/autotrack/internal/vehicle"
)

// SeenSet is an optional external dedup set consulted and updated alongside
// the in-memory one, so restarts do not re-announce listings that were
// already seen. Failures degrade to memory-only dedup; they never block
// ingestion.
type SeenSet interface {
	Contains(ctx context.Context, id string) (bool, error)
	Add(ctx context.Context, id string) error
}

// Store is a bounded, newest-first listing collection with a seen-ID set.
// Only the ingestion pipeline writes; readers take point-in-time snapshots.
// The seen set outlives capacity eviction so an evicted ad that is still
// live on the source is not re-ingested as new.
type Store struct {
	mu          sync.RWMutex
	items       []vehicle.Listing
	seen        map[string]struct{}
	capacity    int
	lastUpdated time.Time

	remote SeenSet
	logger *zap.Logger
}

// New builds a Store holding at most capacity listings. remote may be nil.
func New(capacity int, remote SeenSet, logger *zap.Logger) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		items:    make([]vehicle.Listing, 0, capacity),
		seen:     make(map[string]struct{}),
		capacity: capacity,
		remote:   remote,
		logger:   logger,
	}
}

// Add inserts the listing unless its ID was already seen. It reports whether
// the listing was new. Oldest entries are evicted once the capacity is
// reached; their IDs stay in the seen set.
func (s *Store) Add(ctx context.Context, l vehicle.Listing) bool {
	s.mu.Lock()
	if _, ok := s.seen[l.ID]; ok {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	if s.remote != nil {
		known, err := s.remote.Contains(ctx, l.ID)
		if err != nil {
			s.logger.Warn("remote seen-set lookup failed", zap.String("id", l.ID), zap.Error(err))
		} else if known {
			s.mu.Lock()
			s.seen[l.ID] = struct{}{}
			s.mu.Unlock()
			return false
		}
	}

	s.mu.Lock()
	if _, ok := s.seen[l.ID]; ok {
		s.mu.Unlock()
		return false
	}
	s.seen[l.ID] = struct{}{}
	s.items = append([]vehicle.Listing{l}, s.items...)
	if len(s.items) > s.capacity {
		s.items = s.items[:s.capacity]
	}
	s.lastUpdated = time.Now().UTC()
	s.mu.Unlock()

	if s.remote != nil {
		if err := s.remote.Add(ctx, l.ID); err != nil {
			s.logger.Warn("remote seen-set add failed", zap.String("id", l.ID), zap.Error(err))
		}
	}
	return true
}

// Snapshot returns a newest-first copy of the stored listings. Callers may
// read it without holding any lock while ingestion continues.
func (s *Store) Snapshot() []vehicle.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]vehicle.Listing, len(s.items))
	copy(out, s.items)
	return out
}

// Len reports the number of currently stored listings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// TotalSeen reports how many distinct listing IDs were ever observed,
// including evicted ones.
func (s *Store) TotalSeen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// LastUpdated reports when the store last accepted a new listing.
func (s *Store) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}
