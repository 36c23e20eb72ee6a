package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentgraph/agentgraph/graph/emit"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed Store.
//
// Designed for:
//   - Production deployments requiring durable pause/resume state
//   - Distributed systems with multiple scheduler workers
//   - Long-running runs that survive process restarts
//   - Audit trails over the decision-recorder outbox
//
// MySQLStore uses connection pooling for reliability.
//
// Schema:
//   - run_snapshots: one row per run, holding its full pause/resume state
//   - events_outbox: queued emit.Events awaiting delivery
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a new MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
//
// Example DSNs:
//
//	user:password@tcp(localhost:3306)/agentgraph
//	user:password@tcp(127.0.0.1:3306)/agentgraph?parseTime=true
//
// Security Warning:
//
//	NEVER hardcode credentials in your source code. Use environment variables:
//	    dsn := os.Getenv("MYSQL_DSN")
//	    if dsn == "" {
//	        log.Fatal("MYSQL_DSN environment variable not set")
//	    }
//	    store, err := NewMySQLStore(dsn)
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store := &MySQLStore{db: db}
	if err := store.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	snapshotsTable := `
		CREATE TABLE IF NOT EXISTS run_snapshots (
			run_id VARCHAR(255) NOT NULL PRIMARY KEY,
			graph_id VARCHAR(255) NOT NULL,
			memory_plane JSON NOT NULL,
			visit_counts JSON NOT NULL,
			pause_node_id VARCHAR(255) NOT NULL DEFAULT '',
			pause_payload TEXT NOT NULL,
			transcript JSON NOT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_graph_id (graph_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, snapshotsTable); err != nil {
		return fmt.Errorf("failed to create run_snapshots table: %w", err)
	}

	eventsOutboxTable := `
		CREATE TABLE IF NOT EXISTS events_outbox (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			event_data JSON NOT NULL,
			emitted_at TIMESTAMP NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_pending (emitted_at, created_at),
			INDEX idx_run_id (run_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, eventsOutboxTable); err != nil {
		return fmt.Errorf("failed to create events_outbox table: %w", err)
	}

	return nil
}

func (m *MySQLStore) SaveSnapshot(ctx context.Context, snapshot RunSnapshot) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

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
		ON DUPLICATE KEY UPDATE
			graph_id = VALUES(graph_id),
			memory_plane = VALUES(memory_plane),
			visit_counts = VALUES(visit_counts),
			pause_node_id = VALUES(pause_node_id),
			pause_payload = VALUES(pause_payload),
			transcript = VALUES(transcript),
			created_at = VALUES(created_at)
	`
	_, err = m.db.ExecContext(ctx, query, snapshot.RunID, snapshot.GraphID, memJSON, visitJSON,
		snapshot.PauseNodeID, snapshot.PausePayload, transcriptJSON, snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (m *MySQLStore) LoadSnapshot(ctx context.Context, runID string) (RunSnapshot, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return RunSnapshot{}, fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

	query := `
		SELECT run_id, graph_id, memory_plane, visit_counts, pause_node_id, pause_payload, transcript, created_at
		FROM run_snapshots WHERE run_id = ?
	`
	var (
		snap                                    RunSnapshot
		memJSON, visitJSON, transcriptJSON []byte
	)
	err := m.db.QueryRowContext(ctx, query, runID).Scan(&snap.RunID, &snap.GraphID, &memJSON, &visitJSON,
		&snap.PauseNodeID, &snap.PausePayload, &transcriptJSON, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return RunSnapshot{}, ErrNotFound
	}
	if err != nil {
		return RunSnapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if err := json.Unmarshal(memJSON, &snap.MemoryPlane); err != nil {
		return RunSnapshot{}, fmt.Errorf("failed to unmarshal memory plane: %w", err)
	}
	if err := json.Unmarshal(visitJSON, &snap.VisitCounts); err != nil {
		return RunSnapshot{}, fmt.Errorf("failed to unmarshal visit counts: %w", err)
	}
	if err := json.Unmarshal(transcriptJSON, &snap.Transcript); err != nil {
		return RunSnapshot{}, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return snap, nil
}

func (m *MySQLStore) DeleteSnapshot(ctx context.Context, runID string) error {
	_, err := m.db.ExecContext(ctx, "DELETE FROM run_snapshots WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (m *MySQLStore) EnqueueEvent(ctx context.Context, id string, event emit.Event) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = m.db.ExecContext(ctx, `INSERT INTO events_outbox (id, run_id, event_data) VALUES (?, ?, ?)`,
		id, event.RunID, eventJSON)
	if err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

// PendingEvents retrieves events from the outbox that haven't been emitted yet.
func (m *MySQLStore) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

	query := `
		SELECT event_data FROM events_outbox
		WHERE emitted_at IS NULL
		ORDER BY created_at ASC
		LIMIT ?
	`
	if limit <= 0 {
		limit = 1000
	}
	rows, err := m.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []emit.Event
	for rows.Next() {
		var eventJSON []byte
		if err := rows.Scan(&eventJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		var event emit.Event
		if err := json.Unmarshal(eventJSON, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

// MarkEventsEmitted marks events as successfully emitted to prevent re-delivery.
func (m *MySQLStore) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

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

	// #nosec G201 -- placeholders are not user input, just "?" marks for a parameterized query
	query := fmt.Sprintf(`UPDATE events_outbox SET emitted_at = NOW() WHERE id IN (%s)`, placeholders)
	_, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark events as emitted: %w", err)
	}
	return nil
}

// Close closes the database connection pool. Safe to call more than once.
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()
	return m.db.PingContext(ctx)
}

// Stats returns database connection pool statistics.
func (m *MySQLStore) Stats() sql.DBStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db.Stats()
}
