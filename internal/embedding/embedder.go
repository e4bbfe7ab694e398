// Package embedding holds the embedder implementations and the helpers they share.
package embedding

import (
	"math"

	"docqa/internal/domain"
)

// Embedder converts free text into numeric vectors.
// Implementations may require a preparation phase over the corpus.
type Embedder = domain.Embedder

// Normalize scales v to unit length in place and returns it. Zero vectors are
// returned unchanged.
func Normalize(v []float64) []float64 {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}

// FromFloat32 widens a float32 vector and normalizes it.
func FromFloat32(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return Normalize(out)
}

// Batches splits texts into consecutive groups of at most size elements.
func Batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		out = append(out, texts[start:min(start+size, len(texts))])
	}
	return out
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
