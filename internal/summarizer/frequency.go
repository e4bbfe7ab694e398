package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/embedding/tfidf"
)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

var _ domain.Summarizer = (*FrequencySummarizer)(nil)

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern:    regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		sentencePattern: regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`),
		stopwords:       tfidf.Stopwords(),
	}
}

// Summarize returns a short summary by ranking sentences using token frequency.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	sentences := s.sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}
	scores := s.frequencyScores(sentences)
	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })
	return s.join(sentences, order, maxSentences), nil
}

// Focus picks the sentences of text that share the most terms with question,
// ties broken by word frequency. It returns "" when no sentence mentions any
// question term.
func (s *FrequencySummarizer) Focus(text, question string, maxSentences int) string {
	sentences := s.sentences(text)
	if len(sentences) == 0 {
		return ""
	}
	terms := make(map[string]struct{})
	for _, tok := range s.contentTokens(question) {
		terms[tok] = struct{}{}
	}
	overlap := make([]int, len(sentences))
	var order []int
	for i, sent := range sentences {
		seen := make(map[string]struct{})
		for _, tok := range s.contentTokens(sent) {
			if _, ok := terms[tok]; !ok {
				continue
			}
			if _, dup := seen[tok]; !dup {
				seen[tok] = struct{}{}
				overlap[i]++
			}
		}
		if overlap[i] > 0 {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return ""
	}
	scores := s.frequencyScores(sentences)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if overlap[a] != overlap[b] {
			return overlap[a] > overlap[b]
		}
		return scores[a] > scores[b]
	})
	return s.join(sentences, order, maxSentences)
}

// join keeps the first maxSentences of order and restores document order.
func (s *FrequencySummarizer) join(sentences []string, order []int, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	if maxSentences > len(order) {
		maxSentences = len(order)
	}
	selected := append([]int(nil), order[:maxSentences]...)
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " ")
}

func (s *FrequencySummarizer) sentences(text string) []string {
	var out []string
	for _, sent := range s.sentencePattern.FindAllString(text, -1) {
		sent = strings.Join(strings.Fields(sent), " ")
		if len(s.tokens(sent)) == 0 {
			continue
		}
		out = append(out, sent)
	}
	return out
}

func (s *FrequencySummarizer) frequencyScores(sentences []string) []float64 {
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.contentTokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	scores := make([]float64, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		sscore := 0.0
		for _, tok := range toks {
			sscore += freq[tok]
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = sscore
	}
	return scores
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func (s *FrequencySummarizer) contentTokens(text string) []string {
	raw := s.tokens(text)
	out := raw[:0]
	for _, tok := range raw {
		if _, ok := s.stopwords[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}
