// Package store persists run snapshots for pause/resume (§4.6) and holds
// an event outbox (EnqueueEvent, PendingEvents, MarkEventsEmitted). The
// decision recorder does not write to the outbox.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/agentgraph/agentgraph/graph/emit"
)

// ErrNotFound is returned when a lookup by run id or event id misses.
var ErrNotFound = errors.New("store: not found")

// TranscriptEntry is a persisted turn of an in-progress LLM-tools
// conversation, carried in a snapshot so a suspended client-facing node can
// resume its event loop without replaying earlier turns.
type TranscriptEntry struct {
	Role    string
	Content string
}

// RunSnapshot is the full persisted state of one suspended run, per §4.6:
// run id, graph reference, memory plane contents, visit counter, the pause
// node id, the payload the pause node emitted, and any in-progress
// transcript.
type RunSnapshot struct {
	RunID   string
	GraphID string

	MemoryPlane  map[string]interface{}
	VisitCounts  map[string]int
	PauseNodeID  string
	PausePayload string
	Transcript   []TranscriptEntry

	CreatedAt time.Time
}

// Store persists run snapshots and buffers outbound decision-recorder
// events. Implementations: MemStore (in-process), SQLiteStore, MySQLStore.
type Store interface {
	// SaveSnapshot persists (or overwrites) the snapshot for snapshot.RunID.
	SaveSnapshot(ctx context.Context, snapshot RunSnapshot) error

	// LoadSnapshot retrieves the most recently saved snapshot for runID.
	// Returns ErrNotFound if none exists.
	LoadSnapshot(ctx context.Context, runID string) (RunSnapshot, error)

	// DeleteSnapshot removes a run's persisted snapshot, called once a
	// resumed run reaches a terminal state.
	DeleteSnapshot(ctx context.Context, runID string) error

	// PendingEvents retrieves up to limit events from the outbox that have
	// not yet been emitted, ordered by insertion.
	PendingEvents(ctx context.Context, limit int) ([]emit.Event, error)

	// EnqueueEvent adds an event to the outbox for later delivery.
	EnqueueEvent(ctx context.Context, id string, event emit.Event) error

	// MarkEventsEmitted marks the given outbox entries delivered so they are
	// not returned by PendingEvents again.
	MarkEventsEmitted(ctx context.Context, eventIDs []string) error

	// Close releases any underlying resources (database connections, files).
	Close() error
}
