// Package memorystore implements the Memory Store (C16): two store kinds
// (session and long-term) sharing an identical append/incremental-read
// contract, plus a retrieval combiner that drains session records first.
package memorystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentkernel/core/internal/types"
)

// Record is one append-only memory entry.
type Record struct {
	ID        int64             `json:"id"`
	Agent     string            `json:"agent"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS memory_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	tags TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL
);
`

// Store is a single append-only, incrementally-readable memory store
// (either the session store or the long-term store; both share this
// contract per §4.13).
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite-backed Store at path. Pass ":memory:" for
// an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, types.NewError(types.KindExternal, "memorystore.Open", fmt.Errorf("creating memory store directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, types.NewError(types.KindExternal, "memorystore.Open", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writes per connection

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, types.NewError(types.KindExternal, "memorystore.Open", fmt.Errorf("applying schema: %w", err))
	}
	return &Store{db: db}, nil
}

// OpenWithDB wraps an already-open *sql.DB, used by tests against
// sqlmock.
func OpenWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts a new Record and returns it with its assigned,
// strictly-increasing id.
func (s *Store) Append(ctx context.Context, agent, role, content string, metadata map[string]string, tags []string) (Record, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return Record{}, types.NewError(types.KindIntegrity, "memorystore.Append", err)
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return Record{}, types.NewError(types.KindIntegrity, "memorystore.Append", err)
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_records (agent, role, content, metadata, tags, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		agent, role, content, string(metaJSON), string(tagsJSON), now,
	)
	if err != nil {
		return Record{}, types.NewError(types.KindExternal, "memorystore.Append", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, types.NewError(types.KindExternal, "memorystore.Append", err)
	}

	return Record{
		ID:        id,
		Agent:     agent,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		Tags:      tags,
		CreatedAt: now,
	}, nil
}

// Incremental returns records with id > cursor in ascending id order, up
// to limit, and the next cursor to resume from.
func (s *Store) Incremental(ctx context.Context, cursor int64, limit int) ([]Record, int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent, role, content, metadata, tags, created_at FROM memory_records WHERE id > ? ORDER BY id ASC LIMIT ?`,
		cursor, limit,
	)
	if err != nil {
		return nil, cursor, types.NewError(types.KindExternal, "memorystore.Incremental", err)
	}
	defer rows.Close()

	var records []Record
	nextCursor := cursor
	for rows.Next() {
		var r Record
		var metaJSON, tagsJSON string
		if err := rows.Scan(&r.ID, &r.Agent, &r.Role, &r.Content, &metaJSON, &tagsJSON, &r.CreatedAt); err != nil {
			return nil, cursor, types.NewError(types.KindIntegrity, "memorystore.Incremental", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			return nil, cursor, types.NewError(types.KindIntegrity, "memorystore.Incremental", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
			return nil, cursor, types.NewError(types.KindIntegrity, "memorystore.Incremental", err)
		}
		records = append(records, r)
		nextCursor = r.ID
	}
	if err := rows.Err(); err != nil {
		return nil, cursor, types.NewError(types.KindExternal, "memorystore.Incremental", err)
	}
	return records, nextCursor, nil
}
