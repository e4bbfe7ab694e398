package generator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docqa/internal/domain"
)

// Options are the sampling settings passed on every call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// LLM answers prompts with a langchaingo model.
type LLM struct {
	model llms.Model
	name  string
	opts  Options
}

var _ domain.Generator = (*LLM)(nil)

// NewLLM wraps any langchaingo model. Zero options become temperature 0.7
// and 256 tokens.
func NewLLM(model llms.Model, name string, opts Options) *LLM {
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 256
	}
	return &LLM{model: model, name: name, opts: opts}
}

// OpenAIConfig configures a chat model behind an OpenAI-compatible API.
type OpenAIConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// NewOpenAI creates a generator for an OpenAI-compatible chat endpoint.
func NewOpenAI(cfg OpenAIConfig, opts Options) (*LLM, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	clientOpts := []openai.Option{openai.WithToken(key), openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	model, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return NewLLM(model, "openai:"+cfg.Model, opts), nil
}

// OllamaConfig configures a local Ollama model.
type OllamaConfig struct {
	ServerURL string
	Model     string
}

// NewOllama creates a generator for a model served by Ollama.
func NewOllama(cfg OllamaConfig, opts Options) (*LLM, error) {
	clientOpts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		clientOpts = append(clientOpts, ollama.WithServerURL(cfg.ServerURL))
	}
	model, err := ollama.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return NewLLM(model, "ollama:"+cfg.Model, opts), nil
}

func (g *LLM) Name() string { return g.name }

// Generate sends prompt as a single user message and cleans the reply.
func (g *LLM) Generate(ctx context.Context, prompt string) (string, error) {
	raw, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt,
		llms.WithTemperature(g.opts.Temperature),
		llms.WithMaxTokens(g.opts.MaxTokens),
	)
	if err != nil {
		return "", err
	}
	return CleanAnswer(prompt, raw), nil
}
