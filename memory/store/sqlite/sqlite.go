// Package sqlite implements the memory.Store contract on a SQLite database.
//
// Embeddings are stored as JSON-encoded float32 arrays in a BLOB column.
// At the expected scale (hundreds to low-thousands of memories) the decode
// cost is negligible and it keeps the schema portable across drivers.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ari-bc/gpt-semantic-memory/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS dialogue_history (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	speaker   TEXT NOT NULL,
	content   TEXT NOT NULL,
	timestamp TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS memories (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_summary TEXT,
	related_prompt TEXT,
	embedding      BLOB,
	timestamp      TEXT,
	importance     REAL
);
`

// Store is the SQLite-backed implementation of memory.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral test database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// SQLite is single-writer by design. A single shared connection lets
	// database/sql serialize callers instead of them fighting for write
	// locks across connections (and keeps ":memory:" databases stable).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA user_version = 1",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDialogueEntry appends one turn to the dialogue log.
func (s *Store) SaveDialogueEntry(ctx context.Context, speaker, content, timestamp string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dialogue_history (speaker, content, timestamp) VALUES (?, ?, ?)`,
		speaker, content, timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save dialogue entry: %w", err)
	}
	return nil
}

// DialogueHistory returns the most recent limit entries by timestamp,
// trimmed from the oldest end of that window until the cumulative content
// length fits maxLength, in chronological order. This bounds the prompt
// budget without truncating individual entries mid-text.
func (s *Store) DialogueHistory(ctx context.Context, limit, maxLength int) ([]memory.DialogueEntry, error) {
	query := `SELECT id, speaker, content, timestamp
		FROM dialogue_history ORDER BY timestamp DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query dialogue history: %w", err)
	}
	defer rows.Close()

	// Newest first off the cursor; keep prepending until the length
	// budget runs out. The entry that crosses the budget is excluded.
	var entries []memory.DialogueEntry
	total := 0
	for rows.Next() {
		var e memory.DialogueEntry
		if err := rows.Scan(&e.ID, &e.Speaker, &e.Content, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: scan dialogue entry: %w", err)
		}
		total += len(e.Content)
		if maxLength > 0 && total > maxLength {
			break
		}
		entries = append([]memory.DialogueEntry{e}, entries...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate dialogue history: %w", err)
	}
	return entries, nil
}

// InsertMemory persists one memory row in a single transaction and returns
// its assigned id.
func (s *Store) InsertMemory(ctx context.Context, m *memory.Memory) (int64, error) {
	embedding, err := marshalEmbedding(m.Embedding)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin insert: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO memories (memory_summary, related_prompt, embedding, timestamp, importance)
		 VALUES (?, ?, ?, ?, ?)`,
		m.Summary, m.RelatedPrompt, embedding, m.Timestamp, m.Importance,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert memory: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: memory id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit insert: %w", err)
	}
	return id, nil
}

// AllMemories returns every persisted memory row in id order.
func (s *Store) AllMemories(ctx context.Context) ([]memory.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, memory_summary, related_prompt, embedding, timestamp, importance
		 FROM memories ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query memories: %w", err)
	}
	defer rows.Close()

	var memories []memory.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate memories: %w", err)
	}
	return memories, nil
}

// MemoryByID returns the row with the given id, or memory.ErrNotFound.
func (s *Store) MemoryByID(ctx context.Context, id int64) (*memory.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, memory_summary, related_prompt, embedding, timestamp, importance
		 FROM memories WHERE id = ?`, id,
	)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: memory %d: %w", id, memory.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMemory refreshes a row's timestamp and importance. Updating a
// missing row is a no-op, matching the append-only posture of the engine.
func (s *Store) UpdateMemory(ctx context.Context, id int64, timestamp string, importance float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET timestamp = ?, importance = ? WHERE id = ?`,
		timestamp, importance, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update memory %d: %w", id, err)
	}
	return nil
}

// CountMemories returns the number of memory rows.
func (s *Store) CountMemories(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count memories: %w", err)
	}
	return count, nil
}

// DeleteBelowImportance removes rows whose importance is under floor.
func (s *Store) DeleteBelowImportance(ctx context.Context, floor float64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE importance < ?`, floor,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete below importance: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleted row count: %w", err)
	}
	return deleted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*memory.Memory, error) {
	var m memory.Memory
	var embedding []byte
	err := row.Scan(&m.ID, &m.Summary, &m.RelatedPrompt, &embedding, &m.Timestamp, &m.Importance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan memory: %w", err)
	}
	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &m.Embedding); err != nil {
			return nil, fmt.Errorf("sqlite: decode embedding for memory %d: %w", m.ID, err)
		}
	}
	return &m, nil
}

func marshalEmbedding(embedding []float32) ([]byte, error) {
	if embedding == nil {
		return nil, nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode embedding: %w", err)
	}
	return data, nil
}
