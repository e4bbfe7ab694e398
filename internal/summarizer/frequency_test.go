package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "Go is a programming language. Go programs compile quickly. " +
	"The weather was nice yesterday. Many teams write Go services and Go tools"

func TestSummarizeKeepsDocumentOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	out, err := s.Summarize(sample, 2)
	require.NoError(t, err)
	assert.Equal(t, "Go programs compile quickly. Many teams write Go services and Go tools", out)
}

func TestSummarizeWithoutPunctuation(t *testing.T) {
	s := NewFrequencySummarizer()
	out, err := s.Summarize("  just a fragment  ", 3)
	require.NoError(t, err)
	assert.Equal(t, "just a fragment", out)
}

func TestSummarizeEmpty(t *testing.T) {
	s := NewFrequencySummarizer()
	out, err := s.Summarize("   ", 3)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFocusPrefersQuestionTerms(t *testing.T) {
	s := NewFrequencySummarizer()
	out := s.Focus(sample, "How was the weather?", 2)
	assert.Equal(t, "The weather was nice yesterday.", out)
}

func TestFocusNoOverlap(t *testing.T) {
	s := NewFrequencySummarizer()
	assert.Empty(t, s.Focus(sample, "What about Rust?", 2))
	assert.Empty(t, s.Focus("", "weather", 2))
}

func TestFocusRanksByOverlap(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "Paris is large. The capital of France is Paris. France exports wine."
	out := s.Focus(text, "What is the capital of France?", 1)
	assert.Equal(t, "The capital of France is Paris.", out)
}
