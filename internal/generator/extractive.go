package generator

import (
	"context"
	"errors"
)

// NotFoundAnswer is returned when no context sentence relates to the question.
const NotFoundAnswer = "The answer cannot be found in the provided documents."

// Focuser selects the sentences of text that answer question.
type Focuser interface {
	Focus(text, question string, maxSentences int) string
}

// Extractive answers by quoting the context sentences closest to the
// question. It never calls a model.
type Extractive struct {
	focuser      Focuser
	maxSentences int
}

func NewExtractive(f Focuser, maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Extractive{focuser: f, maxSentences: maxSentences}
}

func (g *Extractive) Name() string { return "extractive" }

func (g *Extractive) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	passage, question, ok := ParsePrompt(prompt)
	if !ok {
		return "", errors.New("prompt has no context section")
	}
	answer := g.focuser.Focus(passage, question, g.maxSentences)
	if answer == "" {
		return NotFoundAnswer, nil
	}
	return answer, nil
}
