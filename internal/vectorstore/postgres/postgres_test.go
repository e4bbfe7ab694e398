package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/storetest"
)

func newMockStorage(t *testing.T) (*Storage, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s, err := NewStorageWithPool(mock, "chunks")
	require.NoError(t, err)
	return s, mock
}

func expectInit(mock pgxmock.PgxPoolIface, existing *int32, dim int) {
	mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS vector")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	rows := pgxmock.NewRows([]string{"atttypmod"})
	if existing != nil {
		rows.AddRow(*existing)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT atttypmod FROM pg_attribute")).
		WithArgs("chunks").
		WillReturnRows(rows)
	if existing != nil && int(*existing) != dim {
		mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS chunks")).
			WillReturnResult(pgxmock.NewResult("DROP", 0))
	}
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS chunks")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
}

func TestInitCreatesTable(t *testing.T) {
	s, mock := newMockStorage(t)
	expectInit(mock, nil, 3)

	require.NoError(t, s.Init(context.Background(), 3))
	assert.Equal(t, 3, s.dimension)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitDropsTableWithOtherDimension(t *testing.T) {
	s, mock := newMockStorage(t)
	old := int32(1536)
	expectInit(mock, &old, 3)

	require.NoError(t, s.Init(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitRejectsZeroDimension(t *testing.T) {
	s, _ := newMockStorage(t)
	assert.ErrorIs(t, s.Init(context.Background(), 0), vectorstore.ErrInvalidDimension)
}

func TestUpsert(t *testing.T) {
	s, mock := newMockStorage(t)
	expectInit(mock, nil, 3)
	require.NoError(t, s.Init(context.Background(), 3))

	chunks, vectors := storetest.Chunks()
	mock.ExpectBegin()
	for i, c := range chunks {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chunks")).
			WithArgs(c.ChunkID, c.DocumentID, c.Filename, c.Page, c.Index, c.Text, Literal(vectors[i])).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.Upsert(context.Background(), chunks, vectors))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBeforeInit(t *testing.T) {
	s, _ := newMockStorage(t)
	chunks, vectors := storetest.Chunks()
	assert.ErrorIs(t, s.Upsert(context.Background(), chunks, vectors), vectorstore.ErrNotInitialized)
}

func TestSearch(t *testing.T) {
	s, mock := newMockStorage(t)
	rows := pgxmock.NewRows([]string{"chunk_id", "document_id", "filename", "page", "idx", "text", "score"}).
		AddRow("doc1:1", "doc1", "a.pdf", 2, 1, "beta", 0.97).
		AddRow("doc2:0", "doc2", "b.txt", 0, 0, "gamma", 0.6)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT chunk_id, document_id, filename, page, idx, text")).
		WithArgs("[0,1,0]", 2).
		WillReturnRows(rows)

	res, err := s.Search(context.Background(), []float64{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, domain.Chunk{DocumentID: "doc1", ChunkID: "doc1:1", Filename: "a.pdf", Page: 2, Index: 1, Text: "beta"}, res[0].Chunk)
	assert.InDelta(t, 0.97, res[0].Score, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchRejectsWrongDimension(t *testing.T) {
	s, mock := newMockStorage(t)
	s.dimension = 3

	_, err := s.Search(context.Background(), []float64{1, 0}, 2)
	require.ErrorIs(t, err, vectorstore.ErrInvalidDimension)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAndClear(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM chunks")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chunks")).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, s.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "[1,0.5,-0.25]", Literal([]float64{1, 0.5, -0.25}))
	assert.Equal(t, "[]", Literal(nil))
}

func TestRejectsBadTableName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewStorageWithPool(mock, "x; DROP TABLE y")
	assert.Error(t, err)
}
