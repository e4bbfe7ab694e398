package vectorstore

import (
	"errors"
	"fmt"

	"docqa/internal/domain"
)

// Storage persists vectors and supports similarity search.
type Storage = domain.VectorStore

// DefaultTopK is used when a search asks for zero or fewer results.
const DefaultTopK = 4

var (
	ErrInvalidDimension = errors.New("invalid dimension")
	ErrLengthMismatch   = errors.New("chunks and vectors length mismatch")
	ErrNotInitialized   = errors.New("vector store not initialized")
)

// CheckUpsert validates an upsert batch against the store dimension.
func CheckUpsert(dimension int, chunks []domain.Chunk, vectors [][]float64) error {
	if dimension <= 0 {
		return ErrNotInitialized
	}
	if len(chunks) != len(vectors) {
		return ErrLengthMismatch
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("vector %d: dimension %d, want %d: %w", i, len(v), dimension, ErrInvalidDimension)
		}
	}
	return nil
}

// CheckQuery rejects a query vector whose length differs from the store
// dimension. A store that was never initialized accepts any query.
func CheckQuery(dimension int, query []float64) error {
	if dimension > 0 && len(query) != dimension {
		return fmt.Errorf("query dimension %d, want %d: %w", len(query), dimension, ErrInvalidDimension)
	}
	return nil
}

// TopK normalizes a requested result count.
func TopK(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	return k
}
