package engine

// workingMemoryCapacity bounds the recency window: retrieved memories and
// interpreter-fetched facts stay visible for a few turns of discussion
// before expiring off the front.
const workingMemoryCapacity = 15

// WorkingMemory is a bounded, deduplicating FIFO of fact strings. A turn
// is a sequential pipeline, so no locking is needed.
type WorkingMemory struct {
	entries  []string
	capacity int
}

// NewWorkingMemory creates a FIFO with the given capacity (the default
// when capacity <= 0).
func NewWorkingMemory(capacity int) *WorkingMemory {
	if capacity <= 0 {
		capacity = workingMemoryCapacity
	}
	return &WorkingMemory{capacity: capacity}
}

// Add appends a fact unless an identical entry is already present, then
// expires the oldest entries down to capacity. Exact-match deduplication
// keeps repeated memories from crowding out the window.
func (w *WorkingMemory) Add(fact string) {
	for _, existing := range w.entries {
		if existing == fact {
			return
		}
	}
	w.entries = append(w.entries, fact)
	for len(w.entries) > w.capacity {
		w.entries = w.entries[1:]
	}
}

// Snapshot returns the current entries, oldest first.
func (w *WorkingMemory) Snapshot() []string {
	out := make([]string, len(w.entries))
	copy(out, w.entries)
	return out
}

// Len returns the number of live entries.
func (w *WorkingMemory) Len() int {
	return len(w.entries)
}
