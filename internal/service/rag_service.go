package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/generator"
	"docqa/internal/logging"
	"docqa/internal/observability"
	"docqa/internal/vectorstore"
)

const (
	// NoDocumentsAnswer is returned by Ask before any document was processed.
	NoDocumentsAnswer = "No documents available."
	// UnknownSource names a source whose file is not known.
	UnknownSource = "Unknown"

	embedBatchSize = 64
)

// Deps are the pipeline components.
type Deps struct {
	Loader     domain.Loader
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Store      domain.VectorStore
	Generator  domain.Generator
	Summarizer domain.Summarizer
	History    domain.History
	Logger     logging.Logger
}

// Options tune retrieval and summaries. Zero values take the defaults.
type Options struct {
	TopK             int // default 4
	MaxContextChars  int // default 4000
	SnippetChars     int // default 200
	SummarySentences int // default 5
}

type RAGServiceImpl struct {
	deps Deps
	log  logging.Logger
	opts Options

	// mu guards the index state below; ingest holds it exclusively.
	mu     sync.RWMutex
	chunks []domain.Chunk
	files  int
	ready  bool
}

func NewRAGService(deps Deps, opts Options) *RAGServiceImpl {
	if deps.Logger == nil {
		deps.Logger = logging.NoOp{}
	}
	if opts.TopK <= 0 {
		opts.TopK = vectorstore.DefaultTopK
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 4000
	}
	if opts.SnippetChars <= 0 {
		opts.SnippetChars = 200
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = 5
	}
	return &RAGServiceImpl{deps: deps, log: deps.Logger, opts: opts}
}

// ProcessFiles replaces the index with the given files and clears the
// conversation. Files that cannot be loaded are skipped. When nothing usable
// remains the index is dropped and domain.ErrNoDocuments is returned.
func (s *RAGServiceImpl) ProcessFiles(ctx context.Context, files []domain.FileRef) (domain.IngestSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		summary   domain.IngestSummary
		allChunks []domain.Chunk
		allTexts  []string
		content   strings.Builder
	)
	for _, f := range files {
		doc, err := s.deps.Loader.Load(ctx, f)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			s.log.Warn("skipping %s: %v", f.Name, err)
			summary.Skipped = append(summary.Skipped, f.Name)
			observability.DocumentsIngestedTotal.WithLabelValues("skipped").Inc()
			continue
		}
		chunks, err := s.deps.Chunker.Chunk(doc)
		if err != nil {
			return summary, fmt.Errorf("chunk %s: %w", f.Name, err)
		}
		if len(chunks) == 0 {
			s.log.Warn("skipping %s: no extractable text", f.Name)
			summary.Skipped = append(summary.Skipped, f.Name)
			observability.DocumentsIngestedTotal.WithLabelValues("skipped").Inc()
			continue
		}
		s.log.Debug("%s: %d chunks", f.Name, len(chunks))
		for _, ch := range chunks {
			allChunks = append(allChunks, ch)
			allTexts = append(allTexts, ch.Text)
		}
		content.WriteString(doc.Content)
		content.WriteString("\n")
		summary.Files++
		observability.DocumentsIngestedTotal.WithLabelValues("indexed").Inc()
	}

	if err := s.deps.History.Clear(ctx); err != nil {
		return summary, fmt.Errorf("clear history: %w", err)
	}
	if len(allChunks) == 0 {
		s.reset()
		if err := s.deps.Store.Clear(ctx); err != nil {
			s.log.Warn("clear vector store: %v", err)
		}
		return summary, domain.ErrNoDocuments
	}

	s.reset()
	if err := s.deps.Embedder.Prepare(ctx, allTexts); err != nil {
		return summary, fmt.Errorf("prepare embedder: %w", err)
	}
	if err := s.deps.Store.Init(ctx, s.deps.Embedder.Dimension()); err != nil {
		return summary, fmt.Errorf("init vector store: %w", err)
	}
	if err := s.deps.Store.Clear(ctx); err != nil {
		return summary, fmt.Errorf("clear vector store: %w", err)
	}
	for start := 0; start < len(allChunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(allChunks))
		vectors, err := s.deps.Embedder.Embed(ctx, allTexts[start:end])
		if err != nil {
			return summary, fmt.Errorf("embed chunks: %w", err)
		}
		if err := s.deps.Store.Upsert(ctx, allChunks[start:end], vectors); err != nil {
			return summary, fmt.Errorf("upsert chunks: %w", err)
		}
	}
	observability.ChunksIngestedTotal.Add(float64(len(allChunks)))
	observability.IndexChunks.Set(float64(len(allChunks)))

	s.chunks = allChunks
	s.files = summary.Files
	s.ready = true
	summary.Chunks = len(allChunks)

	text, err := s.deps.Summarizer.Summarize(content.String(), s.opts.SummarySentences)
	if err != nil {
		s.log.Warn("summarize: %v", err)
	}
	summary.Summary = text
	s.log.Info("indexed %d files (%d chunks, %d skipped) with %s", summary.Files, summary.Chunks, len(summary.Skipped), s.deps.Embedder.Name())
	return summary, nil
}

func (s *RAGServiceImpl) reset() {
	s.chunks = nil
	s.files = 0
	s.ready = false
	observability.IndexChunks.Set(0)
}

// Ask answers question from the indexed documents. Generator failures are
// reported in the answer text, not as an error.
func (s *RAGServiceImpl) Ask(ctx context.Context, question string) (domain.Answer, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, domain.ErrEmptyQuestion
	}
	answer := domain.Answer{Question: question, Sources: []domain.Source{}}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		answer.Answer = NoDocumentsAnswer
		answer.Elapsed = time.Since(start)
		return answer, nil
	}

	results, err := s.search(ctx, question, s.opts.TopK)
	if err != nil {
		return domain.Answer{}, err
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
		answer.Sources = append(answer.Sources, s.source(r))
	}
	prompt := generator.BuildPrompt(question, generator.BuildContext(texts, s.opts.MaxContextChars))

	text, err := s.deps.Generator.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.Answer{}, err
		}
		s.log.Error("generator %s: %v", s.deps.Generator.Name(), err)
		observability.GeneratorErrorsTotal.WithLabelValues(s.deps.Generator.Name()).Inc()
		text = generator.ErrorAnswer(err)
	}
	answer.Answer = text

	if err := s.deps.History.Add(ctx, question, text); err != nil {
		s.log.Warn("record history: %v", err)
	}
	answer.Elapsed = time.Since(start)
	observability.AskDuration.WithLabelValues(s.deps.Generator.Name()).Observe(answer.Elapsed.Seconds())
	s.log.Debug("answered %q in %s from %d chunks", question, answer.Elapsed, len(results))
	return answer, nil
}

// Search returns the chunks closest to query without generating an answer.
func (s *RAGServiceImpl) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, domain.ErrNoDocuments
	}
	if topK <= 0 {
		topK = s.opts.TopK
	}
	return s.search(ctx, query, topK)
}

// search ranks by embedding similarity and falls back to lexical overlap when
// the query has no known terms or nothing scores above zero.
func (s *RAGServiceImpl) search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	vecs, err := s.deps.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 || embedding.IsZero(vecs[0]) {
		return lexicalSearch(s.chunks, query, topK), nil
	}
	res, err := s.deps.Store.Search(ctx, vecs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	for _, r := range res {
		if r.Score > 1e-9 {
			return res, nil
		}
	}
	return lexicalSearch(s.chunks, query, topK), nil
}

func (s *RAGServiceImpl) source(r domain.SearchResult) domain.Source {
	name := r.Chunk.Filename
	if name == "" {
		name = UnknownSource
	}
	return domain.Source{
		Filename: name,
		Page:     r.Chunk.Page,
		Snippet:  Snippet(r.Chunk.Text, s.opts.SnippetChars),
		Score:    r.Score,
	}
}

// Snippet returns the first n characters of text followed by "...".
func Snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes) + "..."
}

func (s *RAGServiceImpl) History(ctx context.Context) ([]domain.Turn, error) {
	return s.deps.History.Turns(ctx)
}

func (s *RAGServiceImpl) ClearHistory(ctx context.Context) error {
	return s.deps.History.Clear(ctx)
}

// Ready reports whether documents have been processed.
func (s *RAGServiceImpl) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *RAGServiceImpl) Stats(ctx context.Context) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := domain.Stats{
		Ready:    s.ready,
		Files:    s.files,
		Embedder: s.deps.Embedder.Name(),
		Model:    s.deps.Generator.Name(),
	}
	if s.ready {
		n, err := s.deps.Store.Count(ctx)
		if err != nil {
			return st, fmt.Errorf("count chunks: %w", err)
		}
		st.Chunks = n
	}
	return st, nil
}
