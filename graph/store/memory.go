package store

import (
	"context"
	"sync"

	"github.com/agentgraph/agentgraph/graph/emit"
)

type outboxEntry struct {
	id      string
	event   emit.Event
	emitted bool
}

// MemStore is an in-process Store backed by maps, guarded by a mutex. It is
// intended for development, testing, and single-process deployments; it
// does not survive a process restart.
type MemStore struct {
	mu        sync.Mutex
	snapshots map[string]RunSnapshot
	outbox    []outboxEntry
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{snapshots: make(map[string]RunSnapshot)}
}

func (s *MemStore) SaveSnapshot(_ context.Context, snapshot RunSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.RunID] = snapshot
	return nil
}

func (s *MemStore) LoadSnapshot(_ context.Context, runID string) (RunSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[runID]
	if !ok {
		return RunSnapshot{}, ErrNotFound
	}
	return snap, nil
}

func (s *MemStore) DeleteSnapshot(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, runID)
	return nil
}

func (s *MemStore) EnqueueEvent(_ context.Context, id string, event emit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, outboxEntry{id: id, event: event})
	return nil
}

func (s *MemStore) PendingEvents(_ context.Context, limit int) ([]emit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []emit.Event
	for _, e := range s.outbox {
		if e.emitted {
			continue
		}
		out = append(out, e.event)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) MarkEventsEmitted(_ context.Context, eventIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mark := make(map[string]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		mark[id] = struct{}{}
	}
	for i := range s.outbox {
		if _, ok := mark[s.outbox[i].id]; ok {
			s.outbox[i].emitted = true
		}
	}
	return nil
}

func (s *MemStore) Close() error { return nil }
