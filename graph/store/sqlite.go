package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentgraph/agentgraph/graph/emit"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store.
//
// Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments
//   - Local persistence of pause/resume snapshots
//
// SQLiteStore uses WAL mode for concurrent reads.
//
// Schema:
//   - run_snapshots: one row per run, holding its full pause/resume state
//   - events_outbox: queued emit.Events awaiting delivery
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at path.
// Use ":memory:" for an ephemeral in-memory database, useful in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	snapshotsTable := `
		CREATE TABLE IF NOT EXISTS run_snapshots (
			run_id TEXT PRIMARY KEY,
			graph_id TEXT NOT NULL,
			memory_plane TEXT NOT NULL,
			visit_counts TEXT NOT NULL,
			pause_node_id TEXT NOT NULL,
			pause_payload TEXT NOT NULL,
			transcript TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, snapshotsTable); err != nil {
		return fmt.Errorf("failed to create run_snapshots table: %w", err)
	}

	eventsOutboxTable := `
		CREATE TABLE IF NOT EXISTS events_outbox (
			id TEXT NOT NULL PRIMARY KEY,
			run_id TEXT NOT NULL,
			event_data TEXT NOT NULL,
			emitted_at TIMESTAMP NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, eventsOutboxTable); err != nil {
		return fmt.Errorf("failed to create events_outbox table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_events_pending ON events_outbox(emitted_at, created_at)"); err != nil {
		return fmt.Errorf("failed to create idx_events_pending: %w", err)
	}

	return nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot RunSnapshot) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	s.mu.RUnlock()

	memJSON, err := json.Marshal(snapshot.MemoryPlane)
	if err != nil {
		return fmt.Errorf("failed to marshal memory plane: %w", err)
	}
	visitJSON, err := json.Marshal(snapshot.VisitCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal visit counts: %w", err)
	}
	transcriptJSON, err := json.Marshal(snapshot.Transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	query := `
		INSERT INTO run_snapshots (run_id, graph_id, memory_plane, visit_counts, pause_node_id, pause_payload, transcript, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			graph_id = excluded.graph_id,
			memory_plane = excluded.memory_plane,
			visit_counts = excluded.visit_counts,
			pause_node_id = excluded.pause_node_id,
			pause_payload = excluded.pause_payload,
			transcript = excluded.transcript,
			created_at = excluded.created_at
	`
	_, err = s.db.ExecContext(ctx, query, snapshot.RunID, snapshot.GraphID, string(memJSON), string(visitJSON),
		snapshot.PauseNodeID, snapshot.PausePayload, string(transcriptJSON), snapshot.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, runID string) (RunSnapshot, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return RunSnapshot{}, fmt.Errorf("store is closed")
	}
	s.mu.RUnlock()

	query := `
		SELECT run_id, graph_id, memory_plane, visit_counts, pause_node_id, pause_payload, transcript, created_at
		FROM run_snapshots WHERE run_id = ?
	`
	var (
		snap                             RunSnapshot
		memJSON, visitJSON, transcriptJSON, ts string
	)
	err := s.db.QueryRowContext(ctx, query, runID).Scan(&snap.RunID, &snap.GraphID, &memJSON, &visitJSON,
		&snap.PauseNodeID, &snap.PausePayload, &transcriptJSON, &ts)
	if err == sql.ErrNoRows {
		return RunSnapshot{}, ErrNotFound
	}
	if err != nil {
		return RunSnapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(memJSON), &snap.MemoryPlane); err != nil {
		return RunSnapshot{}, fmt.Errorf("failed to unmarshal memory plane: %w", err)
	}
	if err := json.Unmarshal([]byte(visitJSON), &snap.VisitCounts); err != nil {
		return RunSnapshot{}, fmt.Errorf("failed to unmarshal visit counts: %w", err)
	}
	if err := json.Unmarshal([]byte(transcriptJSON), &snap.Transcript); err != nil {
		return RunSnapshot{}, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	snap.CreatedAt, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return RunSnapshot{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM run_snapshots WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EnqueueEvent(ctx context.Context, id string, event emit.Event) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO events_outbox (id, run_id, event_data) VALUES (?, ?, ?)`,
		id, event.RunID, string(eventJSON))
	if err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
	query := `
		SELECT event_data FROM events_outbox
		WHERE emitted_at IS NULL
		ORDER BY created_at ASC
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []emit.Event
	for rows.Next() {
		var eventJSON string
		if err := rows.Scan(&eventJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		var event emit.Event
		if err := json.Unmarshal([]byte(eventJSON), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	placeholders := ""
	args := make([]interface{}, len(eventIDs))
	for i, id := range eventIDs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = id
	}
	// #nosec G201 -- placeholders are "?" marks for a parameterized query, not user input
	query := fmt.Sprintf(`UPDATE events_outbox SET emitted_at = CURRENT_TIMESTAMP WHERE id IN (%s)`, placeholders)
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark events as emitted: %w", err)
	}
	return nil
}

// Close closes the database connection. Safe to call more than once.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the underlying database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
