package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

// SnapshotStore keeps the newest snapshot per aggregate
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]shared.Snapshot
	saves     int
}

// NewSnapshotStore creates an empty snapshot store
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]shared.Snapshot)}
}

// GetLatest returns the stored snapshot or (nil, nil)
func (s *SnapshotStore) GetLatest(_ context.Context, aggregateID string) (*shared.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[aggregateID]
	if !ok {
		return nil, nil
	}
	snap.State = slices.Clone(snap.State)
	return &snap, nil
}

// Save keeps snapshot unless a newer version is already stored
func (s *SnapshotStore) Save(_ context.Context, snapshot shared.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.snapshots[snapshot.AggregateID]; ok && existing.Version >= snapshot.Version {
		return nil
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	snapshot.State = slices.Clone(snapshot.State)
	s.snapshots[snapshot.AggregateID] = snapshot
	s.saves++
	return nil
}

// Saves reports how many snapshots were written
func (s *SnapshotStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

var _ shared.SnapshotStore = (*SnapshotStore)(nil)
