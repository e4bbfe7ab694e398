package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/vectorstore/storetest"
)

func openTemp(t *testing.T, path string) *Storage {
	t.Helper()
	s, err := Open(context.Background(), Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorage(t *testing.T) {
	storetest.Run(t, openTemp(t, filepath.Join(t.TempDir(), "index.db")))
}

func TestIndexSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := Open(ctx, Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx, 3))
	chunks, vectors := storetest.Chunks()
	require.NoError(t, s.Upsert(ctx, chunks, vectors))
	require.NoError(t, s.Close())

	reopened := openTemp(t, path)
	assert.Equal(t, 3, reopened.dimension)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := reopened.Search(ctx, []float64{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, chunks[2], res[0].Chunk)
}

func TestInitWithNewDimensionResetsRows(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, s.Init(ctx, 3))
	chunks, vectors := storetest.Chunks()
	require.NoError(t, s.Upsert(ctx, chunks, vectors))

	require.NoError(t, s.Init(ctx, 5))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRejectsBadTableName(t *testing.T) {
	_, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "x.db"), Table: "chunks; DROP"})
	assert.Error(t, err)
}
