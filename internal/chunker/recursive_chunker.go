package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"docqa/internal/domain"
)

// RecursiveChunker delegates to langchaingo's recursive character splitter,
// which tries paragraph, line, sentence and word boundaries in that order.
type RecursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewRecursiveChunker(size, overlap int) *RecursiveChunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &RecursiveChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
		),
	}
}

func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, page := range pagesOf(document) {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		parts, err := c.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("split %s page %d: %w", document.Filename, page.Number, err)
		}
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				chunks = append(chunks, newChunk(document, page.Number, len(chunks), p))
			}
		}
	}
	return chunks, nil
}
