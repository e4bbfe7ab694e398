// Package ollama embeds text with a locally served model through langchaingo.
package ollama

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	lcollama "github.com/tmc/langchaingo/llms/ollama"

	"docqa/internal/domain"
	"docqa/internal/embedding"
)

// Config configures the Ollama embedder.
type Config struct {
	ServerURL string
	Model     string
	BatchSize int
}

// Embedder adapts a langchaingo embeddings.Embedder to domain.Embedder.
type Embedder struct {
	inner embeddings.Embedder
	name  string

	mu        sync.RWMutex
	dimension int
}

var _ domain.Embedder = (*Embedder)(nil)

// New connects to an Ollama server and embeds with the configured model.
func New(cfg Config) (*Embedder, error) {
	llm, err := lcollama.New(lcollama.WithServerURL(cfg.ServerURL), lcollama.WithModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return NewFromClient(llm, "ollama:"+cfg.Model, cfg.BatchSize)
}

// NewFromClient wraps any langchaingo embedding client.
func NewFromClient(client embeddings.EmbedderClient, name string, batchSize int) (*Embedder, error) {
	if batchSize <= 0 {
		batchSize = 16
	}
	inner, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Embedder{inner: inner, name: name}, nil
}

func (e *Embedder) Name() string { return e.name }

// Prepare learns the vector dimension from the first corpus entry.
func (e *Embedder) Prepare(ctx context.Context, corpus []string) error {
	if e.Dimension() > 0 {
		return nil
	}
	probe := "dimension probe"
	if len(corpus) > 0 {
		probe = corpus[0]
	}
	v, err := e.inner.EmbedQuery(ctx, probe)
	if err != nil {
		return fmt.Errorf("probe embedding: %w", err)
	}
	return e.setDimension(len(v))
}

func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	raw, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d inputs", len(raw), len(texts))
	}
	out := make([][]float64, len(raw))
	for i, v := range raw {
		if err := e.setDimension(len(v)); err != nil {
			return nil, err
		}
		out[i] = embedding.FromFloat32(v)
	}
	return out, nil
}

func (e *Embedder) setDimension(n int) error {
	if n == 0 {
		return fmt.Errorf("%s returned an empty vector", e.name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		e.dimension = n
		return nil
	}
	if e.dimension != n {
		return fmt.Errorf("%s: dimension changed from %d to %d", e.name, e.dimension, n)
	}
	return nil
}
