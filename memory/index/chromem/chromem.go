// Package chromem implements the memory.Index contract on chromem-go, a
// pure-Go embedded vector database.
//
// chromem-go is incrementally updatable, so unlike batch-built ANN indexes
// there is no rebuild-on-every-insert requirement; Rebuild exists for
// startup recovery, replacing the index contents with a snapshot of the
// persisted rows.
package chromem

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ari-bc/gpt-semantic-memory/memory"
)

const collectionName = "memories"

// Index is a cosine-distance k-NN index over memory embeddings.
// The mutex serializes Rebuild against Add and Query so a query never
// observes a partially rebuilt collection.
type Index struct {
	mu   sync.RWMutex
	db   *chromem.DB
	col  *chromem.Collection
	size int
}

// New creates an empty index.
func New() (*Index, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: create collection: %w", err)
	}
	return &Index{db: db, col: col}, nil
}

// Add inserts one embedding under the given memory id.
func (ix *Index) Add(ctx context.Context, id int64, embedding []float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.addLocked(ctx, id, embedding); err != nil {
		return err
	}
	ix.size++
	return nil
}

func (ix *Index) addLocked(ctx context.Context, id int64, embedding []float32) error {
	docID := strconv.FormatInt(id, 10)
	err := ix.col.AddDocument(ctx, chromem.Document{
		ID:        docID,
		Content:   docID,
		Embedding: prepare(embedding),
	})
	if err != nil {
		return fmt.Errorf("chromem: add document %d: %w", id, err)
	}
	return nil
}

// Query returns up to k hits ordered nearest-first. Distance is
// 1 - cosine similarity, so it lies in [0, 2] with smaller closer.
func (ix *Index) Query(ctx context.Context, embedding []float32, k int) ([]memory.IndexHit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	// chromem rejects nResults above the collection size.
	n := k
	if n > ix.size {
		n = ix.size
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := ix.col.QueryEmbedding(ctx, prepare(embedding), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}

	hits := make([]memory.IndexHit, 0, len(results))
	for _, result := range results {
		id, err := strconv.ParseInt(result.ID, 10, 64)
		if err != nil {
			log.Printf("[INDEX] Skipping document with non-numeric id %q", result.ID)
			continue
		}
		hits = append(hits, memory.IndexHit{
			ID:       id,
			Distance: 1 - float64(result.Similarity),
		})
	}
	return hits, nil
}

// Rebuild replaces the index contents with the given snapshot. Queries
// block for the duration rather than observing a half-built index.
func (ix *Index) Rebuild(ctx context.Context, entries []memory.IndexEntry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("chromem: drop collection: %w", err)
	}
	col, err := ix.db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("chromem: recreate collection: %w", err)
	}
	ix.col = col
	ix.size = 0

	for _, entry := range entries {
		if err := ix.addLocked(ctx, entry.ID, entry.Embedding); err != nil {
			return err
		}
		ix.size++
	}
	return nil
}

// Len returns the number of indexed embeddings.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.size
}

// prepare normalizes a copy of the vector for cosine comparison. The zero
// vector has no direction; it is mapped to a fixed arbitrary unit vector so
// vocabulary-miss queries degrade to arbitrary rankings instead of failing.
func prepare(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if norm == 0 {
		if len(out) > 0 {
			out[0] = 1
		}
		return out
	}

	n := float32(math.Sqrt(norm))
	for i, v := range vec {
		out[i] = v / n
	}
	return out
}
