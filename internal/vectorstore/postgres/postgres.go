// Package postgres stores chunks in PostgreSQL with the pgvector extension and
// lets the database rank them by cosine distance.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DBPool defines the subset of a pgx pool the store needs.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Options configuration for the Postgres connection.
type Options struct {
	ConnString string
	Table      string // Default "docqa_chunks"
}

// Storage implements domain.VectorStore on Postgres + pgvector.
type Storage struct {
	pool      DBPool
	table     string
	dimension int
}

var _ domain.VectorStore = (*Storage)(nil)

// NewStorage connects a pool to opts.ConnString.
func NewStorage(ctx context.Context, opts Options) (*Storage, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	s, err := NewStorageWithPool(pool, opts.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStorageWithPool creates a store on an existing pool. Useful for testing with mocks.
func NewStorageWithPool(pool DBPool, table string) (*Storage, error) {
	if table == "" {
		table = "docqa_chunks"
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Storage{pool: pool, table: table}, nil
}

// Close closes the pool.
func (s *Storage) Close() {
	s.pool.Close()
}

// Init creates the extension and table. An existing table with a different
// vector dimension is dropped first.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}

	var current int32
	err := s.pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = to_regclass($1) AND attname = 'embedding'`,
		s.table,
	).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to inspect %s: %w", s.table, err)
	case int(current) != dimension:
		if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table)); err != nil {
			return fmt.Errorf("failed to drop %s: %w", s.table, err)
		}
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			chunk_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			page INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.table, dimension)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if err := vectorstore.CheckUpsert(s.dimension, chunks, vectors); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, document_id, filename, page, idx, text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector)
		ON CONFLICT (chunk_id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			filename = EXCLUDED.filename,
			page = EXCLUDED.page,
			idx = EXCLUDED.idx,
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding`, s.table)
	for i, c := range chunks {
		if _, err := tx.Exec(ctx, query, c.ChunkID, c.DocumentID, c.Filename, c.Page, c.Index, c.Text, Literal(vectors[i])); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if err := vectorstore.CheckQuery(s.dimension, vector); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT chunk_id, document_id, filename, page, idx, text, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, s.table)
	rows, err := s.pool.Query(ctx, query, Literal(vector), vectorstore.TopK(topK))
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var r domain.SearchResult
		c := &r.Chunk
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Filename, &c.Page, &c.Index, &c.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}

// Literal renders v in pgvector's text form, e.g. "[1,0.5,0]".
func Literal(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
