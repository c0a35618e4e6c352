package wordvec_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ari-bc/gpt-semantic-memory/memory/embedder/wordvec"
)

func writeModel(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectors.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return path
}

const testModel = `3 4
hello 1 0 0 0
world 0 1 0 0
goodbye 0 0 1 0
`

func TestLoadModelWithHeader(t *testing.T) {
	embedder, err := wordvec.Load(writeModel(t, testModel))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if embedder.Dimensions() != 4 {
		t.Fatalf("Dimensions = %d, want 4", embedder.Dimensions())
	}
}

func TestLoadModelWithoutHeader(t *testing.T) {
	embedder, err := wordvec.Load(writeModel(t, "hello 1 0\nworld 0 1\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if embedder.Dimensions() != 2 {
		t.Fatalf("Dimensions = %d, want 2", embedder.Dimensions())
	}
}

func TestEmbedAveragesTokenVectors(t *testing.T) {
	embedder, err := wordvec.Load(writeModel(t, testModel))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	vec, err := embedder.Embed(context.Background(), "Hello World")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("len = %d, want 4", len(vec))
	}
	if vec[0] != 0.5 || vec[1] != 0.5 || vec[2] != 0 {
		t.Errorf("vec = %v, want [0.5 0.5 0 0]", vec)
	}
}

func TestEmbedUnknownTokensYieldZeroVector(t *testing.T) {
	embedder, err := wordvec.Load(writeModel(t, testModel))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	vec, err := embedder.Embed(context.Background(), "xyzzy plugh")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("len = %d, want 4", len(vec))
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("vec[%d] = %v, want zero vector", i, v)
		}
	}
}

func TestEmbedStripsTrailingCommasOnMiss(t *testing.T) {
	embedder, err := wordvec.Load(writeModel(t, testModel))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	vec, err := embedder.Embed(context.Background(), "hello, goodbye,")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vec[0] != 0.5 || vec[2] != 0.5 {
		t.Errorf("vec = %v, want comma-stripped tokens found", vec)
	}
}

func TestLoadRejectsRaggedDimensions(t *testing.T) {
	_, err := wordvec.Load(writeModel(t, "hello 1 0 0\nworld 0 1\n"))
	if err == nil {
		t.Fatal("load succeeded on ragged model, want error")
	}
}

func TestLoadRejectsEmptyModel(t *testing.T) {
	_, err := wordvec.Load(writeModel(t, ""))
	if err == nil {
		t.Fatal("load succeeded on empty model, want error")
	}
}
