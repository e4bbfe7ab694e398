// Package sqlite keeps the index in a single SQLite file so it survives restarts.
// Similarity is computed in Go over all stored vectors.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures the SQLite store.
type Options struct {
	Path  string
	Table string // Default "chunks"
}

// Storage implements domain.VectorStore on SQLite.
type Storage struct {
	db    *sql.DB
	table string

	mu        sync.RWMutex
	dimension int
}

var _ domain.VectorStore = (*Storage)(nil)

// Open opens (or creates) the database at opts.Path and ensures the schema.
func Open(ctx context.Context, opts Options) (*Storage, error) {
	table := opts.Table
	if table == "" {
		table = "chunks"
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)

	s := &Storage{db: db, table: table}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			chunk_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			page INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			text TEXT NOT NULL,
			vector TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_document_id ON %[1]s (document_id);
		CREATE TABLE IF NOT EXISTS %[1]s_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	var raw string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %s_meta WHERE key = 'dimension'`, s.table)).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("failed to read dimension: %w", err)
	default:
		d, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("corrupt dimension %q: %w", raw, err)
		}
		s.dimension = d
	}
	return nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Init records the dimension. A different dimension than the stored one
// drops the existing rows, since old vectors are no longer comparable.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
			return fmt.Errorf("failed to reset index: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s_meta (key, value) VALUES ('dimension', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, s.table), strconv.Itoa(dimension))
	if err != nil {
		return fmt.Errorf("failed to save dimension: %w", err)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()
	if err := vectorstore.CheckUpsert(dim, chunks, vectors); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (chunk_id, document_id, filename, page, idx, text, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			filename = excluded.filename,
			page = excluded.page,
			idx = excluded.idx,
			text = excluded.text,
			vector = excluded.vector
	`, s.table))
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		vec, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("failed to marshal vector: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.ChunkID, c.DocumentID, c.Filename, c.Page, c.Index, c.Text, string(vec)); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ChunkID, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()
	if err := vectorstore.CheckQuery(dim, vector); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT chunk_id, document_id, filename, page, idx, text, vector FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	var vectors [][]float64
	for rows.Next() {
		var c domain.Chunk
		var raw string
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Filename, &c.Page, &c.Index, &c.Text, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		var v []float64
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("corrupt vector for %s: %w", c.ChunkID, err)
		}
		chunks = append(chunks, c)
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vectorstore.Rank(chunks, vectors, vector, topK), nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}
