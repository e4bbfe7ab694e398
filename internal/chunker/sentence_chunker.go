package chunker

import (
	"regexp"
	"strings"

	"docqa/internal/domain"
)

// SentenceChunker splits text into sentence-based chunks with overlap.
// Text after the last terminator counts as a sentence of its own.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`),
	}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, page := range pagesOf(document) {
		for _, text := range c.split(page.Text) {
			chunks = append(chunks, newChunk(document, page.Number, len(chunks), text))
		}
	}
	return chunks, nil
}

func (c *SentenceChunker) split(content string) []string {
	var sentences []string
	for _, sent := range c.splitter.FindAllString(content, -1) {
		if sent = strings.TrimSpace(sent); sent != "" {
			sentences = append(sentences, sent)
		}
	}
	if len(sentences) == 0 {
		return nil
	}
	var out []string
	i := 0
	for i < len(sentences) {
		end := min(i+c.sentencesPerChunk, len(sentences))
		out = append(out, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
		i = max(end-c.overlapSentences, 0)
	}
	return out
}
