package chunker

import (
	"strconv"
	"strings"

	"docqa/internal/domain"
)

// sentenceLookback is how far from the window end a sentence end is searched.
const sentenceLookback = 100

// WindowChunker splits text into fixed-size character windows that overlap.
// When a window ends mid-text it is pulled back to the last sentence end
// found within its final sentenceLookback characters. Windows always advance
// by size-overlap, so a pull-back longer than the overlap leaves a gap.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker creates a sliding-window chunker measured in characters.
func NewWindowChunker(size, overlap int) *WindowChunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 100
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &WindowChunker{size: size, overlap: overlap}
}

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, page := range pagesOf(document) {
		for _, text := range c.split(page.Text) {
			chunks = append(chunks, newChunk(document, page.Number, len(chunks), text))
		}
	}
	return chunks, nil
}

func (c *WindowChunker) split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	var out []string
	for start := 0; start < n; start += c.size - c.overlap {
		end := min(start+c.size, n)
		if end < n {
			lower := max(start+c.size-sentenceLookback, start)
			for i := end; i > lower; i-- {
				if isSentenceEnd(runes[i-1]) {
					end = i
					break
				}
			}
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// pagesOf returns the pages to chunk. Documents without page information are
// treated as a single page holding the whole content.
func pagesOf(document domain.Document) []domain.Page {
	if len(document.Pages) > 0 {
		return document.Pages
	}
	return []domain.Page{{Number: 0, Text: document.Content}}
}

func newChunk(document domain.Document, page, idx int, text string) domain.Chunk {
	return domain.Chunk{
		DocumentID: document.ID,
		ChunkID:    document.ID + ":" + strconv.Itoa(idx),
		Filename:   document.Filename,
		Page:       page,
		Text:       text,
		Index:      idx,
	}
}
