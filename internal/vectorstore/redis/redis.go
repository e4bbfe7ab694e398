// Package redis stores chunks as Redis hashes with their vectors encoded as JSON.
// Similarity is computed in Go over all stored vectors.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Options configuration for Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Key prefix, default "docqa:"
}

// Storage implements domain.VectorStore on Redis.
type Storage struct {
	client *redis.Client
	prefix string
}

var _ domain.VectorStore = (*Storage)(nil)

// NewStorage creates a Redis-backed store. No connection is made until first use.
func NewStorage(opts Options) *Storage {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "docqa:"
	}
	return &Storage{client: client, prefix: prefix}
}

func (s *Storage) chunkKey(id string) string      { return s.prefix + "chunk:" + id }
func (s *Storage) indexKey() string               { return s.prefix + "chunks" }
func (s *Storage) dimensionKey() string           { return s.prefix + "dimension" }
func (s *Storage) Close() error                   { return s.client.Close() }
func (s *Storage) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Storage) dimension(ctx context.Context) (int, error) {
	d, err := s.client.Get(ctx, s.dimensionKey()).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read dimension: %w", err)
	}
	return d, nil
}

// Init records the dimension. A different dimension than the stored one
// drops the existing chunks.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	current, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if current != 0 && current != dimension {
		if err := s.Clear(ctx); err != nil {
			return err
		}
	}
	if err := s.client.Set(ctx, s.dimensionKey(), dimension, 0).Err(); err != nil {
		return fmt.Errorf("failed to save dimension: %w", err)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if err := vectorstore.CheckUpsert(dim, chunks, vectors); err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	for i, c := range chunks {
		vec, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("failed to marshal vector: %w", err)
		}
		pipe.HSet(ctx, s.chunkKey(c.ChunkID), map[string]any{
			"document_id": c.DocumentID,
			"chunk_id":    c.ChunkID,
			"filename":    c.Filename,
			"page":        c.Page,
			"index":       c.Index,
			"text":        c.Text,
			"vector":      string(vec),
		})
		pipe.SAdd(ctx, s.indexKey(), c.ChunkID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save chunks to redis: %w", err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if err := vectorstore.CheckQuery(dim, vector); err != nil {
		return nil, err
	}
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.chunkKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(ids))
	vectors := make([][]float64, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		c, v, err := decode(fields)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
		vectors = append(vectors, v)
	}
	return vectorstore.Rank(chunks, vectors, vector, topK), nil
}

func decode(fields map[string]string) (domain.Chunk, []float64, error) {
	c := domain.Chunk{
		DocumentID: fields["document_id"],
		ChunkID:    fields["chunk_id"],
		Filename:   fields["filename"],
		Text:       fields["text"],
	}
	c.Page, _ = strconv.Atoi(fields["page"])
	c.Index, _ = strconv.Atoi(fields["index"])
	var v []float64
	if err := json.Unmarshal([]byte(fields["vector"]), &v); err != nil {
		return c, nil, fmt.Errorf("corrupt vector for %s: %w", c.ChunkID, err)
	}
	return c, v, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(n), nil
}

func (s *Storage) Clear(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.chunkKey(id))
	}
	keys = append(keys, s.indexKey())
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}
