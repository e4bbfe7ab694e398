// Package generator turns retrieved context into an answer.
package generator

import (
	"fmt"
	"strings"
)

const promptTemplate = "Based on the following context, answer the question. If the answer cannot be found in the context, say so.\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:"

// FallbackAnswer replaces an empty model response.
const FallbackAnswer = "I understand your question, but I'm having trouble generating a detailed response."

// BuildContext joins chunk texts with a blank line, keeping at most maxChars
// characters. Whole chunks are preferred; only a first chunk that is longer
// than the limit is cut. maxChars <= 0 disables the limit.
func BuildContext(texts []string, maxChars int) string {
	var b strings.Builder
	used := 0
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		n := len([]rune(text))
		sep := 0
		if used > 0 {
			sep = 2
		}
		if maxChars > 0 && used+sep+n > maxChars {
			if used == 0 {
				b.WriteString(string([]rune(text)[:maxChars]))
			}
			break
		}
		if sep > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
		used += sep + n
	}
	return b.String()
}

// BuildPrompt renders the question answering prompt.
func BuildPrompt(question, context string) string {
	return fmt.Sprintf(promptTemplate, context, strings.TrimSpace(question))
}

// ParsePrompt recovers the context and question from a prompt made by
// BuildPrompt.
func ParsePrompt(prompt string) (context, question string, ok bool) {
	_, rest, found := strings.Cut(prompt, "\n\nContext:\n")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, "\n\nQuestion: ")
	if i < 0 {
		return "", "", false
	}
	context = rest[:i]
	question = strings.TrimSuffix(rest[i+len("\n\nQuestion: "):], "\n\nAnswer:")
	return context, question, true
}

// CleanAnswer strips an echoed prompt from raw and substitutes FallbackAnswer
// for an empty response.
func CleanAnswer(prompt, raw string) string {
	answer := strings.TrimSpace(raw)
	if strings.HasPrefix(answer, strings.TrimSpace(prompt)) {
		answer = strings.TrimSpace(answer[len(strings.TrimSpace(prompt)):])
	}
	if answer == "" {
		return FallbackAnswer
	}
	return answer
}

// ErrorAnswer is the answer shown when the language model fails.
func ErrorAnswer(err error) string {
	return fmt.Sprintf("Language model error: %v.", err)
}
