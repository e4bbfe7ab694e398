package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding/ollama"
	"docqa/internal/embedding/openai"
	"docqa/internal/embedding/tfidf"
	"docqa/internal/generator"
	"docqa/internal/history"
	"docqa/internal/loader"
	"docqa/internal/logging"
	"docqa/internal/service"
	"docqa/internal/summarizer"
	"docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/postgres"
	"docqa/internal/vectorstore/qdrant"
	"docqa/internal/vectorstore/redis"
	"docqa/internal/vectorstore/sqlite"
)

// components holds the assembled pipeline and whatever must be closed on exit.
type components struct {
	service.Deps
	closers []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func buildComponents(ctx context.Context, cfg *config.AppConfig, logger logging.Logger) (*components, error) {
	c := &components{}
	c.Logger = logger
	c.Loader = loader.New()
	c.History = history.NewBuffer()

	switch cfg.Chunker.Type {
	case "window", "":
		c.Chunker = chunker.NewWindowChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	case "sentence":
		c.Chunker = chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences)
	case "recursive":
		c.Chunker = chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}

	switch cfg.Embedder.Type {
	case "tfidf", "":
		c.Embedder = tfidf.NewEmbedder()
	case "openai":
		oc := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
			BatchSize: oc.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		c.Embedder = client
	case "ollama":
		oc := cfg.Embedder.Ollama
		emb, err := ollama.New(ollama.Config{ServerURL: oc.ServerURL, Model: oc.Model, BatchSize: oc.BatchSize})
		if err != nil {
			return nil, fmt.Errorf("ollama embedder init failed: %w", err)
		}
		c.Embedder = emb
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	store, err := buildStore(ctx, cfg.VectorStore, c)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Store = store

	var sum *summarizer.FrequencySummarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	default:
		c.Close()
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}
	c.Summarizer = sum

	opts := generator.Options{Temperature: cfg.Generator.Temperature, MaxTokens: cfg.Generator.MaxTokens}
	switch cfg.Generator.Type {
	case "extractive", "":
		c.Generator = generator.NewExtractive(sum, 3)
	case "openai":
		oc := cfg.Generator.OpenAI
		g, err := generator.NewOpenAI(generator.OpenAIConfig{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		}, opts)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("openai generator init failed: %w", err)
		}
		c.Generator = g
	case "ollama":
		oc := cfg.Generator.Ollama
		g, err := generator.NewOllama(generator.OllamaConfig{ServerURL: oc.ServerURL, Model: oc.Model}, opts)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("ollama generator init failed: %w", err)
		}
		c.Generator = g
	default:
		c.Close()
		return nil, fmt.Errorf("unknown generator: %s", cfg.Generator.Type)
	}
	return c, nil
}

func buildStore(ctx context.Context, cfg config.VectorStoreConfig, c *components) (domain.VectorStore, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "qdrant":
		q := cfg.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}), nil
	case "sqlite":
		st, err := sqlite.Open(ctx, sqlite.Options{Path: cfg.SQLite.Path, Table: cfg.SQLite.Table})
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		c.closers = append(c.closers, func() { _ = st.Close() })
		return st, nil
	case "redis":
		r := cfg.Redis
		st := redis.NewStorage(redis.Options{Addr: r.Addr, Password: r.Password, DB: r.DB, Prefix: r.Prefix})
		c.closers = append(c.closers, func() { _ = st.Close() })
		if err := st.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect redis at %s: %w", r.Addr, err)
		}
		return st, nil
	case "postgres":
		p := cfg.Postgres
		dsn := os.Getenv(p.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("missing Postgres DSN in env %s", p.DSNEnv)
		}
		st, err := postgres.NewStorage(ctx, postgres.Options{ConnString: dsn, Table: p.Table})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		c.closers = append(c.closers, st.Close)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}
