// Package wordvec implements embedding by averaging pretrained per-token
// word vectors loaded from a word2vec-style text model file.
package wordvec

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Model is a read-only token-to-vector table loaded once at startup.
type Model struct {
	vectors map[string][]float32
	dims    int
}

// LoadModel reads a word2vec text-format model: an optional "count dims"
// header line followed by one "token v1 v2 ... vD" line per token. The
// model is loaded fully into memory; lookups after load do no I/O.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wordvec: open model: %w", err)
	}
	defer f.Close()

	begin := time.Now()
	m := &Model{vectors: make(map[string][]float32)}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if lineNum == 1 && len(fields) == 2 {
			// word2vec header: vocabulary size and dimension count.
			if _, err := strconv.Atoi(fields[0]); err == nil {
				if dims, err := strconv.Atoi(fields[1]); err == nil {
					m.dims = dims
					continue
				}
			}
		}

		token := fields[0]
		vec := make([]float32, len(fields)-1)
		for i, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("wordvec: line %d: parse %q: %w", lineNum, field, err)
			}
			vec[i] = float32(v)
		}
		if m.dims == 0 {
			m.dims = len(vec)
		} else if len(vec) != m.dims {
			return nil, fmt.Errorf("wordvec: line %d: got %d dimensions, want %d", lineNum, len(vec), m.dims)
		}
		m.vectors[token] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wordvec: read model: %w", err)
	}
	if m.dims == 0 {
		return nil, fmt.Errorf("wordvec: model %s is empty", path)
	}

	log.Printf("[WORDVEC] Loaded %d vectors (dim=%d) in %s", len(m.vectors), m.dims, time.Since(begin))
	return m, nil
}

// Lookup returns the vector for a token, if present.
func (m *Model) Lookup(token string) ([]float32, bool) {
	vec, ok := m.vectors[token]
	return vec, ok
}

// Dimensions returns the vector size of the loaded model.
func (m *Model) Dimensions() int {
	return m.dims
}

// Embedder averages per-token vectors into a single fixed-size embedding.
// It is a deterministic, pure function of the text and the loaded model.
type Embedder struct {
	model *Model
}

// New creates an Embedder over an already-loaded model.
func New(model *Model) *Embedder {
	return &Embedder{model: model}
}

// Load reads the model file at path and returns an Embedder over it.
func Load(path string) (*Embedder, error) {
	model, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	return New(model), nil
}

// Embed lowercases and whitespace-tokenizes the text, looks each token up
// in the model (retrying with trailing commas and spaces stripped on a
// miss), and returns the mean of the vectors found. Text with no known
// tokens embeds to the zero vector; that is a defined degenerate case, not
// an error.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	dims := e.model.Dimensions()
	sum := make([]float32, dims)
	found := 0

	for _, token := range strings.Fields(strings.ToLower(text)) {
		vec, ok := e.model.Lookup(token)
		if !ok {
			vec, ok = e.model.Lookup(strings.Trim(token, ", "))
		}
		if !ok {
			continue
		}
		for i, v := range vec {
			sum[i] += v
		}
		found++
	}

	if found == 0 {
		return sum, nil
	}
	for i := range sum {
		sum[i] /= float32(found)
	}
	return sum, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.model.Dimensions()
}
