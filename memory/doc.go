// Package memory implements the semantic memory engine: a persistent store
// of dialogue turns and admitted memories, an approximate nearest-neighbour
// index over their embeddings, and the retrieval/admission logic that ties
// them together.
//
// Architecture:
//   - Store: relational persistence (dialogue log + memory table)
//   - Index: vector index over admitted memory embeddings
//   - Embedder: text-to-vector conversion
//   - Engine: orchestrates retrieval, admission, and startup recovery
//
// Write path: a candidate memory passes the admission transform
// (raw importance cubed, divided by 100, kept only at >= 2.0), is embedded,
// inserted as a row, and added to the index. The index lives in memory and
// is rebuilt from persisted rows at startup, so a crash between the row
// insert and the index add cannot leave the two permanently inconsistent.
//
// Read path: the query text is embedded, the index returns the nearest
// candidates with angular distances, each candidate's row is loaded, and
// results are ranked by a weighted blend of similarity and importance.
package memory
