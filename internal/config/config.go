package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds configuration for OpenAI-compatible endpoints.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size,omitempty"`
}

// OllamaConfig holds configuration for a local Ollama server.
type OllamaConfig struct {
	ServerURL string `yaml:"server_url"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk,omitempty"`
	OverlapSentences  int    `yaml:"overlap_sentences,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	SQLite   *SQLiteConfig   `yaml:"sqlite,omitempty"`
	Redis    *RedisConfig    `yaml:"redis,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SQLiteConfig points at the index database file.
type SQLiteConfig struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

// RedisConfig contains connection details for a Redis vector store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// PostgresConfig contains connection details for a pgvector-enabled Postgres.
type PostgresConfig struct {
	DSNEnv string `yaml:"dsn_env"`
	Table  string `yaml:"table"`
}

// GeneratorConfig selects the language model that writes answers.
type GeneratorConfig struct {
	Type        string        `yaml:"type"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	OpenAI      *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama      *OllamaConfig `yaml:"ollama,omitempty"`
}

// RetrievalConfig tunes how context is gathered for a question.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k"`
	MaxContextChars int `yaml:"max_context_chars"`
	SnippetChars    int `yaml:"snippet_chars"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
	ReadTimeout   int    `yaml:"read_timeout_secs"`
	WriteTimeout  int    `yaml:"write_timeout_secs"`
	ShutdownGrace int    `yaml:"shutdown_grace_secs"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects option combinations that cannot work.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "tfidf", "openai", "ollama":
	default:
		return fmt.Errorf("unknown embedder %q", c.Embedder.Type)
	}
	switch c.Chunker.Type {
	case "window", "sentence", "recursive":
	default:
		return fmt.Errorf("unknown chunker %q", c.Chunker.Type)
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	switch c.VectorStore.Type {
	case "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return errors.New("vector_store.qdrant.url is required")
		}
	case "sqlite":
		if c.VectorStore.SQLite == nil || c.VectorStore.SQLite.Path == "" {
			return errors.New("vector_store.sqlite.path is required")
		}
	case "redis":
		if c.VectorStore.Redis == nil || c.VectorStore.Redis.Addr == "" {
			return errors.New("vector_store.redis.addr is required")
		}
	case "postgres":
		if c.VectorStore.Postgres == nil {
			return errors.New("vector_store.postgres section is required")
		}
	default:
		return fmt.Errorf("unknown vector store %q", c.VectorStore.Type)
	}
	switch c.Generator.Type {
	case "extractive", "openai", "ollama":
	default:
		return fmt.Errorf("unknown generator %q", c.Generator.Type)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf"},
		Chunker:     ChunkerConfig{Type: "window", ChunkSize: 1000, ChunkOverlap: 100},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Generator:   GeneratorConfig{Type: "extractive", Temperature: 0.7, MaxTokens: 256},
		Retrieval:   RetrievalConfig{TopK: 4, MaxContextChars: 4000, SnippetChars: 200},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Server:      ServerConfig{Addr: ":8080", MaxUploadMB: 64, ReadTimeout: 60, WriteTimeout: 300, ShutdownGrace: 10},
		Log:         LogConfig{Level: "info"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "window"
	}
	if cfg.Chunker.ChunkSize <= 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap < 0 {
		cfg.Chunker.ChunkOverlap = 0
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		openAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaConfig{}
		}
		ollamaDefaults(cfg.Embedder.Ollama, "all-minilm")
		if cfg.Embedder.Ollama.BatchSize == 0 {
			cfg.Embedder.Ollama.BatchSize = 16
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.Collection == "" {
			q.Collection = "docqa"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}
	if s := cfg.VectorStore.SQLite; s != nil && s.Table == "" {
		s.Table = "chunks"
	}
	if r := cfg.VectorStore.Redis; r != nil && r.Prefix == "" {
		r.Prefix = "docqa:"
	}
	if p := cfg.VectorStore.Postgres; p != nil {
		if p.DSNEnv == "" {
			p.DSNEnv = "DOCQA_POSTGRES_DSN"
		}
		if p.Table == "" {
			p.Table = "docqa_chunks"
		}
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "extractive"
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 256
	}
	if cfg.Generator.Type == "openai" {
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIConfig{}
		}
		openAIDefaults(cfg.Generator.OpenAI, "gpt-4o-mini")
	}
	if cfg.Generator.Type == "ollama" {
		if cfg.Generator.Ollama == nil {
			cfg.Generator.Ollama = &OllamaConfig{}
		}
		ollamaDefaults(cfg.Generator.Ollama, "llama3.2")
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Retrieval.MaxContextChars <= 0 {
		cfg.Retrieval.MaxContextChars = 4000
	}
	if cfg.Retrieval.SnippetChars <= 0 {
		cfg.Retrieval.SnippetChars = 200
	}
	if cfg.Summarizer.MaxSentences <= 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 64
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 60
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 300
	}
	if cfg.Server.ShutdownGrace <= 0 {
		cfg.Server.ShutdownGrace = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func openAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
}

func ollamaDefaults(c *OllamaConfig, model string) {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = model
	}
}
