package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoDocuments is returned when an ingest run produced no indexable text.
	ErrNoDocuments = errors.New("no documents with extractable text")
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrUnsupportedFile is returned by loaders for extensions they cannot parse.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrNotPrepared is returned by embedders used before Prepare.
	ErrNotPrepared = errors.New("embedder not prepared")
)

// FileRef names a file to ingest. Name is what the user sees (the uploaded
// file name); Path is where the bytes live on disk.
type FileRef struct {
	Name string
	Path string
}

// Page is the text of a single page. Plain text documents have one page
// numbered 0.
type Page struct {
	Number int
	Text   string
}

// Document represents a single file loaded into the system.
type Document struct {
	ID       string
	Path     string
	Filename string
	Content  string
	Pages    []Page
}

// Chunk is a part of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Filename   string
	Page       int
	Text       string
	Index      int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Source is a retrieved chunk as shown next to an answer.
type Source struct {
	Filename string  `json:"filename"`
	Page     int     `json:"page,omitempty"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
}

// Answer is the result of asking a question.
type Answer struct {
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Sources  []Source      `json:"sources"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Turn is one question/answer exchange of the conversation.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// IngestSummary describes the outcome of processing a batch of files.
type IngestSummary struct {
	Files   int      `json:"files"`
	Skipped []string `json:"skipped,omitempty"`
	Chunks  int      `json:"chunks"`
	Summary string   `json:"summary"`
}

// Stats is a point-in-time view of the index.
type Stats struct {
	Ready    bool   `json:"ready"`
	Files    int    `json:"files"`
	Chunks   int    `json:"chunks"`
	Embedder string `json:"embedder"`
	Model    string `json:"generator"`
}

// Loader extracts text from a file on disk.
type Loader interface {
	Load(ctx context.Context, file FileRef) (Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into numeric vectors.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Generator produces an answer for a fully rendered prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// History stores the conversation.
type History interface {
	Add(ctx context.Context, question, answer string) error
	Turns(ctx context.Context) ([]Turn, error)
	Clear(ctx context.Context) error
}
