// Package sqlite implements the memory.Store persistence contract on
// modernc.org/sqlite (pure Go, no cgo). It also backs the MessageSource
// and InteractionLog collaborator interfaces so the engine is runnable
// against a single local database file.
//
// Vector embeddings are stored as little-endian float32 blobs; similarity
// math happens in the engine, not in SQL. The working set is bounded
// (hundreds to low thousands of items per project), so there is no index
// structure beyond ordinary B-trees.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/becomeliminal/conductor/memory"
)

// Store is the SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and runs schema migrations.
// Use ":memory:" for an ephemeral database.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer keeps transactional merges simple; SQLite serializes
	// writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS learning_items (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '',
		domains TEXT NOT NULL DEFAULT '[]',
		embedding BLOB,
		usage_count INTEGER NOT NULL DEFAULT 0,
		verified_at TEXT,
		pinned_at TEXT,
		muted_at TEXT,
		last_used_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_items_project ON learning_items(project_id);
	CREATE INDEX IF NOT EXISTS idx_items_project_type ON learning_items(project_id, type);

	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		link_type TEXT NOT NULL,
		strength REAL NOT NULL,
		rationale TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_links_project ON links(project_id);
	CREATE INDEX IF NOT EXISTS idx_links_endpoints ON links(project_id, from_id, to_id);

	CREATE TABLE IF NOT EXISTS cooccurrences (
		project_id TEXT NOT NULL,
		item_a TEXT NOT NULL,
		item_b TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		positive_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project_id, item_a, item_b)
	);

	CREATE TABLE IF NOT EXISTS domain_signals (
		project_id TEXT PRIMARY KEY,
		primary_domain TEXT NOT NULL,
		domains TEXT NOT NULL DEFAULT '[]',
		conversations_analyzed INTEGER NOT NULL DEFAULT 0,
		computed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS project_confidence (
		project_id TEXT PRIMARY KEY,
		score REAL NOT NULL,
		computed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_project ON messages(project_id, created_at);

	CREATE TABLE IF NOT EXISTS interaction_events (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		positive INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_project ON interaction_events(project_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeVector converts a float32 slice to a little-endian byte blob.
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector converts a byte blob back to a float32 slice.
func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// formatTime renders a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// formatTimePtr renders an optional timestamp; nil stays NULL.
func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime parses a stored timestamp. Zero time on empty input.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseTimePtr parses an optional stored timestamp.
func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

var (
	_ memory.Store          = (*Store)(nil)
	_ memory.MessageSource  = (*Store)(nil)
	_ memory.InteractionLog = (*Store)(nil)
)
