// Package cache holds the trip snapshot read cache. Reads fall back to the
// store on any miss, so a cache outage only costs latency.
package cache

import (
	"context"
	"sync"
	"time"

	"busbook/internal/domain/models"
)

// SnapshotCache stores trip snapshots. Every Invalidate bumps the trip's
// version; Set only stores a snapshot read under the current version, so a
// write racing a cache fill never leaves a stale entry behind.
type SnapshotCache interface {
	Get(ctx context.Context, tripID string) (models.TripSnapshot, bool)
	Version(ctx context.Context, tripID string) int64
	Set(ctx context.Context, snap models.TripSnapshot, version int64)
	Invalidate(ctx context.Context, tripID string)
}

type memoryEntry struct {
	snap    models.TripSnapshot
	expires time.Time
}

// Memory is a process-local SnapshotCache with a fixed TTL.
type Memory struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	entries  map[string]memoryEntry
	versions map[string]int64
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, entries: map[string]memoryEntry{}, versions: map[string]int64{}}
}

func (m *Memory) Get(_ context.Context, tripID string) (models.TripSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[tripID]
	if !ok || m.now().After(e.expires) {
		return models.TripSnapshot{}, false
	}
	return e.snap, true
}

func (m *Memory) Version(_ context.Context, tripID string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[tripID]
}

func (m *Memory) Set(_ context.Context, snap models.TripSnapshot, version int64) {
	if m.ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[snap.TripID] != version {
		return
	}
	m.entries[snap.TripID] = memoryEntry{snap: snap, expires: m.now().Add(m.ttl)}
}

func (m *Memory) Invalidate(_ context.Context, tripID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[tripID]++
	delete(m.entries, tripID)
}

// Noop disables caching.
type Noop struct{}

func (Noop) Get(context.Context, string) (models.TripSnapshot, bool) {
	return models.TripSnapshot{}, false
}
func (Noop) Version(context.Context, string) int64           { return 0 }
func (Noop) Set(context.Context, models.TripSnapshot, int64) {}
func (Noop) Invalidate(context.Context, string)              {}
