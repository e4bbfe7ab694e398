package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"docqa/internal/domain"
	"docqa/internal/embedding"
)

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	api        *goopenai.Client
	model      string
	batchSize  int
	maxRetries int
	sleep      func(context.Context, time.Duration) error

	mu        sync.RWMutex
	dimension int
}

var _ domain.Embedder = (*Client)(nil)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	apiCfg := goopenai.DefaultConfig(key)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		api:        goopenai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		maxRetries: 5,
		sleep:      sleepCtx,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Prepare learns the vector dimension with a single probe request so the
// store can be initialized before the corpus is sent.
func (c *Client) Prepare(ctx context.Context, corpus []string) error {
	if c.Dimension() > 0 {
		return nil
	}
	probe := "dimension probe"
	if len(corpus) > 0 {
		probe = corpus[0]
	}
	_, err := c.Embed(ctx, []string{probe})
	return err
}

// Dimension returns the dimensionality of the produced embedding vectors,
// or 0 before the first successful request.
func (c *Client) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// Embed returns one normalized vector per text, batching requests.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, batch := range embedding.Batches(texts, c.batchSize) {
		vecs, err := c.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float64, error) {
	req := goopenai.EmbeddingRequest{Input: batch, Model: goopenai.EmbeddingModel(c.model)}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.api.CreateEmbeddings(ctx, req)
		if err != nil {
			lastErr = err
			if !retryable(err) || attempt == c.maxRetries {
				break
			}
			if err := c.sleep(ctx, retryDelay(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(batch))
		}
		vecs := make([][]float64, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) || len(d.Embedding) == 0 {
				return nil, errors.New("openai embeddings: malformed response")
			}
			if vecs[d.Index] != nil {
				return nil, fmt.Errorf("openai embeddings: duplicate index %d", d.Index)
			}
			if len(d.Embedding) != len(resp.Data[0].Embedding) {
				return nil, errors.New("openai embeddings: vectors of different lengths in one response")
			}
			vecs[d.Index] = embedding.FromFloat32(d.Embedding)
		}
		if err := c.setDimension(len(vecs[0])); err != nil {
			return nil, err
		}
		return vecs, nil
	}
	return nil, fmt.Errorf("openai embeddings failed: %w", lastErr)
}

func (c *Client) setDimension(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimension == 0 {
		c.dimension = n
		return nil
	}
	if c.dimension != n {
		return fmt.Errorf("openai embeddings: dimension changed from %d to %d", c.dimension, n)
	}
	return nil
}

// retryable reports whether err is a rate limit, a server error or a
// transport failure.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
