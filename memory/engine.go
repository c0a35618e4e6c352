package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"
)

const (
	// admissionThreshold is the minimum post-transform importance a
	// candidate needs to be persisted.
	admissionThreshold = 2.0

	// DefaultSimilarityWeight balances semantic relevance against
	// long-term salience in retrieval ranking.
	DefaultSimilarityWeight = 0.5
)

// Engine wires the store, index, and embedder into the memory engine.
// It owns the store and index exclusively; callers interact with memories
// only through it.
type Engine struct {
	store    Store
	index    Index
	embedder Embedder
}

// NewEngine creates an Engine and rebuilds the index from persisted rows,
// restoring store/index consistency regardless of prior crash state.
func NewEngine(ctx context.Context, store Store, index Index, embedder Embedder) (*Engine, error) {
	e := &Engine{
		store:    store,
		index:    index,
		embedder: embedder,
	}
	if err := e.RebuildIndex(ctx); err != nil {
		return nil, fmt.Errorf("memory: initial index build: %w", err)
	}
	return e, nil
}

// RebuildIndex reloads every persisted memory row into the index. Rows that
// predate embedding persistence are re-embedded from their summary.
func (e *Engine) RebuildIndex(ctx context.Context) error {
	memories, err := e.store.AllMemories(ctx)
	if err != nil {
		return fmt.Errorf("load memories: %w", err)
	}

	entries := make([]IndexEntry, 0, len(memories))
	for _, m := range memories {
		embedding := m.Embedding
		if len(embedding) == 0 {
			embedding, err = e.embedder.Embed(ctx, m.Summary)
			if err != nil {
				return fmt.Errorf("re-embed memory %d: %w", m.ID, err)
			}
		}
		entries = append(entries, IndexEntry{ID: m.ID, Embedding: embedding})
	}

	if err := e.index.Rebuild(ctx, entries); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	log.Printf("[MEMORY] Index rebuilt with %d entries", len(entries))
	return nil
}

// RecordTurn appends one dialogue turn unconditionally. Content is
// URL-decoded when it arrives percent-encoded from a web front end; text
// that isn't valid percent-encoding is stored as-is.
func (e *Engine) RecordTurn(ctx context.Context, speaker, content, timestamp string) error {
	if decoded, err := url.PathUnescape(content); err == nil {
		content = decoded
	}
	if err := e.store.SaveDialogueEntry(ctx, speaker, content, timestamp); err != nil {
		return fmt.Errorf("memory: record turn: %w", err)
	}
	return nil
}

// DialogueHistory returns the most recent limit turns whose cumulative
// content length fits maxLength, in chronological order.
func (e *Engine) DialogueHistory(ctx context.Context, limit, maxLength int) ([]DialogueEntry, error) {
	return e.store.DialogueHistory(ctx, limit, maxLength)
}

// AdmitMemory applies the admission transform and persists the candidate if
// it survives. The raw importance is self-reported by the model on a 0-10
// scale with heavy bias toward low and mid values; cubing it and dividing
// by 100 rejects anything below roughly 6 (6^3/100 = 2.16) while keeping
// resolution at the high end. Returns whether the candidate was admitted.
//
// The row insert is transactional in the store; the index add follows it.
// A crash between the two is repaired by RebuildIndex at next startup.
func (e *Engine) AdmitMemory(ctx context.Context, summary, relatedPrompt, timestamp string, rawImportance float64) (bool, error) {
	scaled := rawImportance * rawImportance * rawImportance / 100.0
	if scaled < admissionThreshold {
		return false, nil
	}

	embedding, err := e.embedder.Embed(ctx, summary)
	if err != nil {
		return false, fmt.Errorf("memory: embed candidate: %w", err)
	}

	m := &Memory{
		Summary:       summary,
		RelatedPrompt: relatedPrompt,
		Embedding:     embedding,
		Timestamp:     timestamp,
		Importance:    scaled,
	}
	id, err := e.store.InsertMemory(ctx, m)
	if err != nil {
		return false, fmt.Errorf("memory: insert: %w", err)
	}
	m.ID = id

	if err := e.index.Add(ctx, id, embedding); err != nil {
		return false, fmt.Errorf("memory: index add: %w", err)
	}

	log.Printf("[MEMORY] Admitted memory %d: s=%q i=%.2f", id, summary, scaled)
	return true, nil
}

// RetrieveRelevant returns up to numResults memories ranked by a weighted
// blend of similarity and importance. similarityWeight in [0, 1] tunes
// recall between "what's similar right now" (1.0) and "what mattered most
// ever" (0.0).
//
// Query text with no known tokens embeds to the zero vector and yields
// arbitrary low-relevance rankings rather than an error.
func (e *Engine) RetrieveRelevant(ctx context.Context, queryText string, numResults int, similarityWeight float64) ([]RetrievedMemory, error) {
	if numResults <= 0 {
		return nil, nil
	}

	embedding, err := e.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("memory: embed query: %w", err)
	}

	hits, err := e.index.Query(ctx, embedding, numResults)
	if err != nil {
		return nil, fmt.Errorf("memory: index query: %w", err)
	}

	retrieved := make([]RetrievedMemory, 0, len(hits))
	for _, hit := range hits {
		m, err := e.store.MemoryByID(ctx, hit.ID)
		if errors.Is(err, ErrNotFound) {
			// Stale index entry; repaired on next rebuild.
			log.Printf("[MEMORY] Index hit %d has no backing row, skipping", hit.ID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("memory: load row %d: %w", hit.ID, err)
		}

		similarity := 1 - hit.Distance
		retrieved = append(retrieved, RetrievedMemory{
			Memory:     *m,
			Distance:   hit.Distance,
			Similarity: similarity,
			Combined:   CombinedScore(similarity, m.Importance, similarityWeight),
		})
	}

	sort.SliceStable(retrieved, func(i, j int) bool {
		return retrieved[i].Combined > retrieved[j].Combined
	})

	log.Printf("[MEMORY] Retrieved %d memories for query %q", len(retrieved), truncateLog(queryText, 50))
	return retrieved, nil
}

// CombinedScore blends semantic similarity with long-term salience:
// weight*similarity + (1-weight)*importance.
func CombinedScore(similarity, importance, similarityWeight float64) float64 {
	return similarityWeight*similarity + (1-similarityWeight)*importance
}

// ReinforceMemory refreshes a memory's timestamp and importance. Not called
// from the turn path; retained as the repeated-exposure reinforcement hook.
func (e *Engine) ReinforceMemory(ctx context.Context, id int64, timestamp string, importance float64) error {
	return e.store.UpdateMemory(ctx, id, timestamp, importance)
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
