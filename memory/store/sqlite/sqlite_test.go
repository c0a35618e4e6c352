package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ari-bc/gpt-semantic-memory/memory"
	"github.com/ari-bc/gpt-semantic-memory/memory/store/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDialogueHistoryWindowAndOrder(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	for i := 0; i < 20; i++ {
		ts := fmt.Sprintf("2023-04-05T10:00:%02dZ", i)
		if err := store.SaveDialogueEntry(ctx, "user", fmt.Sprintf("message %02d", i), ts); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	history, err := store.DialogueHistory(ctx, 10, 2000)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 10 {
		t.Fatalf("got %d entries, want 10", len(history))
	}
	// A chronologically ordered suffix of the log.
	if history[0].Content != "message 10" || history[9].Content != "message 19" {
		t.Errorf("window = %q..%q, want message 10..message 19", history[0].Content, history[9].Content)
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp < history[i-1].Timestamp {
			t.Fatalf("entries out of chronological order at %d", i)
		}
	}
}

func TestDialogueHistoryTrimsToMaxLength(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	for i := 0; i < 5; i++ {
		ts := fmt.Sprintf("2023-04-05T10:00:%02dZ", i)
		// Each entry is 10 characters.
		if err := store.SaveDialogueEntry(ctx, "user", fmt.Sprintf("entry %04d", i), ts); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	history, err := store.DialogueHistory(ctx, 5, 25)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	total := 0
	for _, e := range history {
		total += len(e.Content)
	}
	if total > 25 {
		t.Errorf("combined length %d exceeds budget 25", total)
	}
	// Trimming happens from the oldest end: the newest entries survive.
	if len(history) != 2 || history[1].Content != "entry 0004" {
		t.Errorf("history = %+v, want the 2 newest entries", history)
	}
}

func TestInsertAndLoadMemory(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	m := &memory.Memory{
		Summary:       "greeting, hello",
		RelatedPrompt: "user said hello",
		Embedding:     []float32{0.25, -0.5, 1},
		Timestamp:     "2023-04-05T10:00:00Z",
		Importance:    2.16,
	}
	id, err := store.InsertMemory(ctx, m)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	loaded, err := store.MemoryByID(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Summary != m.Summary || loaded.RelatedPrompt != m.RelatedPrompt || loaded.Importance != m.Importance {
		t.Errorf("loaded = %+v, want fields of %+v", loaded, m)
	}
	if len(loaded.Embedding) != 3 || loaded.Embedding[2] != 1 {
		t.Errorf("embedding round-trip = %v, want %v", loaded.Embedding, m.Embedding)
	}

	count, err := store.CountMemories(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestMemoryByIDNotFound(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	_, err := store.MemoryByID(ctx, 42)
	if !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("err = %v, want memory.ErrNotFound", err)
	}
}

func TestUpdateMemory(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	id, err := store.InsertMemory(ctx, &memory.Memory{
		Summary: "fact", Timestamp: "2023-04-05T10:00:00Z", Importance: 3.0,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := store.UpdateMemory(ctx, id, "2023-04-06T10:00:00Z", 3.1); err != nil {
		t.Fatalf("update: %v", err)
	}
	loaded, err := store.MemoryByID(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Importance != 3.1 || loaded.Timestamp != "2023-04-06T10:00:00Z" {
		t.Errorf("loaded = %+v, want updated timestamp and importance", loaded)
	}

	// Updating a missing row is a no-op.
	if err := store.UpdateMemory(ctx, 9999, "2023-04-06T10:00:00Z", 1.0); err != nil {
		t.Errorf("update missing row: %v, want nil", err)
	}
}

func TestDeleteBelowImportance(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	for i, importance := range []float64{2.1, 5.0, 9.9, 10.0} {
		_, err := store.InsertMemory(ctx, &memory.Memory{
			Summary:    fmt.Sprintf("memory %d", i),
			Timestamp:  "2023-04-05T10:00:00Z",
			Importance: importance,
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	deleted, err := store.DeleteBelowImportance(ctx, 10.0)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	count, _ := store.CountMemories(ctx)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
