package embeddings

import (
	"context"
	"strings"
	"testing"

	"github.com/go-logr/logr"

	"github.com/dferrero/diffscope/internal/logging"
)

type fakeModel struct {
	calls   int
	respond func(inputs []string) ([][]float32, error)
}

func (f *fakeModel) CreateEmbedding(ctx context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	return f.respond(inputs)
}

func newTestClient(model *fakeModel) *Client {
	return &Client{model: "test-embed", llm: model, log: logging.New(logr.Discard())}
}

func TestEmbedTextsBatch(t *testing.T) {
	model := &fakeModel{respond: func(inputs []string) ([][]float32, error) {
		vectors := make([][]float32, len(inputs))
		for i := range inputs {
			vectors[i] = []float32{0.1, 0.2, 0.3}
		}
		return vectors, nil
	}}
	client := newTestClient(model)

	vectors, err := client.EmbedTexts(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if model.calls != 1 {
		t.Fatalf("expected a single model call, got %d", model.calls)
	}
}

func TestEmbedTextsNoInputs(t *testing.T) {
	model := &fakeModel{respond: func(inputs []string) ([][]float32, error) {
		t.Fatal("model must not be called for an empty batch")
		return nil, nil
	}}
	client := newTestClient(model)

	if _, err := client.EmbedTexts(context.Background(), nil); err == nil {
		t.Fatal("expected an error for an empty batch")
	}
	if model.calls != 0 {
		t.Fatalf("model was called %d time(s)", model.calls)
	}
}

func TestEmbedTextsCountMismatch(t *testing.T) {
	model := &fakeModel{respond: func(inputs []string) ([][]float32, error) {
		return [][]float32{{0.1, 0.2}}, nil
	}}
	client := newTestClient(model)

	_, err := client.EmbedTexts(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected an error when vector count disagrees with input count")
	}
	if !strings.Contains(err.Error(), "1 vectors for 2 inputs") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmbedTextsDimensionMismatchFailsBatch(t *testing.T) {
	model := &fakeModel{respond: func(inputs []string) ([][]float32, error) {
		return [][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5}}, nil
	}}
	client := newTestClient(model)

	vectors, err := client.EmbedTexts(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected a hard error on a dimension mismatch within the batch")
	}
	if !strings.Contains(err.Error(), "dimension mismatch") {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors != nil {
		t.Fatal("no partial output must be returned on a mismatch")
	}
}

func TestEmbedTextsEmptyVector(t *testing.T) {
	model := &fakeModel{respond: func(inputs []string) ([][]float32, error) {
		return [][]float32{{}}, nil
	}}
	client := newTestClient(model)

	_, err := client.EmbedTexts(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected an error for an empty vector")
	}
	if !strings.Contains(err.Error(), "empty vector") {
		t.Fatalf("unexpected error: %v", err)
	}
}
