package memory

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.MemoryByID when no row has the given id.
var ErrNotFound = errors.New("memory: not found")

// Memory is one admitted long-term memory.
//
// Summary holds the content-word tags the reply protocol extracted for the
// exchange; RelatedPrompt holds the free-text summary line. Importance is
// the post-transform scalar (see Engine.AdmitMemory), not the raw score the
// model reported. Rows are immutable after creation in the current design;
// Store.UpdateMemory exists as a reinforcement extension point.
type Memory struct {
	ID            int64
	Summary       string
	RelatedPrompt string
	Embedding     []float32
	Timestamp     string
	Importance    float64
}

// DialogueEntry is one turn in the append-only dialogue log.
type DialogueEntry struct {
	ID        int64
	Speaker   string
	Content   string
	Timestamp string
}

// RetrievedMemory is a Memory annotated with its query-time scores.
type RetrievedMemory struct {
	Memory

	// Distance is the angular distance reported by the index, in [0, 2].
	Distance float64

	// Similarity is 1 - Distance.
	Similarity float64

	// Combined is the blended relevance/salience score used for ranking.
	Combined float64
}

// Embedder converts text to a fixed-dimension vector embedding.
// Implementations must be deterministic and pure per input text; the engine
// relies on this when rebuilding the index from persisted rows.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	// Text with no known tokens embeds to the zero vector, not an error.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// IndexHit is one approximate-nearest-neighbour result.
type IndexHit struct {
	ID       int64
	Distance float64
}

// IndexEntry is one id/embedding pair, used when rebuilding an index from
// persisted rows.
type IndexEntry struct {
	ID        int64
	Embedding []float32
}

// Index is the approximate k-nearest-neighbour index over all admitted
// memory embeddings, keyed by memory row id.
//
// Implementations must keep Query consistent under concurrent Rebuild: a
// query issued during a rebuild observes either the old or the new index,
// never a partially built one.
type Index interface {
	// Add inserts one embedding. After a successful Add, a Query for the
	// same vector returns that id among the results if k is large enough
	// and no other vector is strictly closer.
	Add(ctx context.Context, id int64, embedding []float32) error

	// Query returns up to k hits ordered nearest-first. Distances are
	// angular (cosine-derived), in [0, 2], smaller is closer.
	Query(ctx context.Context, embedding []float32, k int) ([]IndexHit, error)

	// Rebuild replaces the index contents with the given snapshot.
	Rebuild(ctx context.Context, entries []IndexEntry) error

	// Len returns the number of indexed embeddings.
	Len() int
}

// Store is the persistence backend: the append-only dialogue log plus the
// memory table.
type Store interface {
	// SaveDialogueEntry appends one turn. The dialogue log has no
	// admission filter.
	SaveDialogueEntry(ctx context.Context, speaker, content, timestamp string) error

	// DialogueHistory returns the most recent limit entries, trimmed from
	// the oldest end until the cumulative content length fits maxLength,
	// in chronological order. limit <= 0 means no entry-count limit.
	DialogueHistory(ctx context.Context, limit, maxLength int) ([]DialogueEntry, error)

	// InsertMemory persists one memory row and returns its assigned id.
	InsertMemory(ctx context.Context, m *Memory) (int64, error)

	// AllMemories returns every persisted memory row.
	AllMemories(ctx context.Context) ([]Memory, error)

	// MemoryByID returns the row with the given id, or ErrNotFound.
	MemoryByID(ctx context.Context, id int64) (*Memory, error)

	// UpdateMemory refreshes a row's timestamp and importance. Unused by
	// the turn path; kept as a future reinforcement mechanism.
	UpdateMemory(ctx context.Context, id int64, timestamp string, importance float64) error

	// CountMemories returns the number of memory rows.
	CountMemories(ctx context.Context) (int, error)

	// DeleteBelowImportance removes rows whose importance is under floor
	// and returns how many were deleted. Maintenance only; callers must
	// rebuild the index afterwards.
	DeleteBelowImportance(ctx context.Context, floor float64) (int64, error)

	// Close releases the underlying connection.
	Close() error
}
