// Package storetest holds the behavior every vector store must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Chunks returns three chunks along the x, y and z axes.
func Chunks() ([]domain.Chunk, [][]float64) {
	chunks := []domain.Chunk{
		{DocumentID: "doc1", ChunkID: "doc1:0", Filename: "a.pdf", Page: 1, Index: 0, Text: "alpha"},
		{DocumentID: "doc1", ChunkID: "doc1:1", Filename: "a.pdf", Page: 2, Index: 1, Text: "beta"},
		{DocumentID: "doc2", ChunkID: "doc2:0", Filename: "b.txt", Index: 0, Text: "gamma"},
	}
	vectors := [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0.6, 0.8}}
	return chunks, vectors
}

// Run exercises a freshly created, empty store.
func Run(t *testing.T, store domain.VectorStore) {
	t.Helper()
	ctx := context.Background()

	require.Error(t, store.Init(ctx, 0))
	require.NoError(t, store.Init(ctx, 3))

	chunks, vectors := Chunks()
	require.NoError(t, store.Upsert(ctx, chunks, vectors))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := store.Search(ctx, []float64{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, chunks[1], res[0].Chunk)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	assert.Equal(t, "doc2:0", res[1].Chunk.ChunkID)
	assert.InDelta(t, 0.6, res[1].Score, 1e-6)

	res, err = store.Search(ctx, []float64{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, res, 3)
	assert.Equal(t, "doc1:0", res[0].Chunk.ChunkID)

	// re-upserting an existing chunk replaces it
	updated := chunks[0]
	updated.Text = "alpha v2"
	require.NoError(t, store.Upsert(ctx, []domain.Chunk{updated}, [][]float64{{1, 0, 0}}))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	res, err = store.Search(ctx, []float64{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "alpha v2", res[0].Chunk.Text)

	_, err = store.Search(ctx, []float64{1, 0}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidDimension)

	assert.Error(t, store.Upsert(ctx, chunks[:1], [][]float64{{1, 0}}))
	assert.Error(t, store.Upsert(ctx, chunks, vectors[:1]))

	require.NoError(t, store.Clear(ctx))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	res, err = store.Search(ctx, []float64{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}
