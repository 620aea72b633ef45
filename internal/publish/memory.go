package publish

import (
	"context"
	"fmt"
	"sync"

	"github.com/autotrack/autotrack/internal/vehicle"
)

// Memory stores published listings for inspection.
type Memory struct {
	mu       sync.RWMutex
	listings []vehicle.Listing
}

// NewMemory returns a memory Publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish records the listing and returns a pseudo ID.
func (m *Memory) Publish(_ context.Context, l vehicle.Listing) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings = append(m.listings, l)
	return fmt.Sprintf("memory-%d", len(m.listings)), nil
}

// Published returns a copy of the recorded listings.
func (m *Memory) Published() []vehicle.Listing {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]vehicle.Listing, len(m.listings))
	copy(out, m.listings)
	return out
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
