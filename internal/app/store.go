package app

import (
	"sync"
	"time"

	"calnotify/internal/model"
)

// Snapshot is one immutable normalized event set as published by the
// sync loop. Readers (the tick loop, the status API) always see either
// the previous or the next complete set, never a partial update.
type Snapshot struct {
	Events    []model.Event
	FetchedAt time.Time
}

// Store publishes snapshots with replace-the-whole-collection
// semantics. Single writer (the sync loop), any number of readers.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStore returns a store holding an empty snapshot.
func NewStore() *Store {
	return &Store{}
}

// Replace atomically publishes a new snapshot.
func (s *Store) Replace(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

// Current returns the latest published snapshot. Callers must not
// mutate the returned event slice.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
