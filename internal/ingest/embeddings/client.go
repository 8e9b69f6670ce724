package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/dferrero/diffscope/internal/logging"
)

// embeddingModel is the langchaingo surface the client depends on.
type embeddingModel interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

// Client generates embedding vectors through an Ollama-served model.
type Client struct {
	model string
	llm   embeddingModel
	to    time.Duration
	log   logging.Logger
}

func NewClient(baseURL, model string, timeout time.Duration, log logging.Logger) (*Client, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
		opts = append(opts, ollama.WithServerURL(trimmed))
	}
	opts = append(opts, ollama.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	return &Client{model: model, llm: llm, to: timeout, log: log.WithName("embeddings")}, nil
}

// EmbedTexts embeds a batch of inputs. Every vector in one call must share
// the first vector's dimension; a mismatch fails the whole call rather than
// returning partial output.
func (c *Client) EmbedTexts(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no inputs provided for embedding")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	c.log.Debug("embedding batch", "inputs", len(inputs), "model", c.model)

	vectors, err := c.llm.CreateEmbedding(ctx, inputs)
	if err != nil {
		annotated := c.annotateError(err)
		c.log.Error(annotated, "embedding failed", "elapsed", time.Since(start).String())
		return nil, fmt.Errorf("create embedding: %w", annotated)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("embedding returned %d vectors for %d inputs", len(vectors), len(inputs))
	}
	if err := checkDimensions(vectors); err != nil {
		return nil, err
	}

	c.log.Debug("embedded batch", "vectors", len(vectors), "elapsed", time.Since(start).String())
	return vectors, nil
}

func checkDimensions(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return errors.New("embedding service returned an empty vector")
	}
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("embedding dimension mismatch within batch: vector %d has %d, first has %d", i, len(vec), dim)
		}
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.to <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.to)
}

func (c *Client) annotateError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("embedding call timed out after %s: %w", c.to, err)
	}
	return err
}
