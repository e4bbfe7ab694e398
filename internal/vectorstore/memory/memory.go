package memory

import (
	"context"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	chunks    []domain.Chunk
}

var _ domain.VectorStore = (*Storage)(nil)

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.chunks = nil
	return nil
}

// Upsert replaces chunks whose ChunkID is already stored and appends the rest.
func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := vectorstore.CheckUpsert(s.dimension, chunks, vectors); err != nil {
		return err
	}
	pos := make(map[string]int, len(s.chunks))
	for i, c := range s.chunks {
		pos[c.ChunkID] = i
	}
	for i, c := range chunks {
		if j, ok := pos[c.ChunkID]; ok {
			s.chunks[j] = c
			s.vectors[j] = vectors[i]
			continue
		}
		pos[c.ChunkID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := vectorstore.CheckQuery(s.dimension, vector); err != nil {
		return nil, err
	}
	return vectorstore.Rank(s.chunks, s.vectors, vector, topK), nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.chunks = nil
	return nil
}
