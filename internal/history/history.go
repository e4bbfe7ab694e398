// Package history keeps the question/answer exchanges of a session.
package history

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"

	"docqa/internal/domain"
)

// Buffer stores every turn in a langchaingo chat message history.
type Buffer struct {
	mu       sync.Mutex
	messages *memory.ChatMessageHistory
}

var _ domain.History = (*Buffer)(nil)

func NewBuffer() *Buffer {
	return &Buffer{messages: memory.NewChatMessageHistory()}
}

// Add records a question and its answer.
func (b *Buffer) Add(ctx context.Context, question, answer string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.messages.AddUserMessage(ctx, question); err != nil {
		return err
	}
	return b.messages.AddAIMessage(ctx, answer)
}

// Turns pairs each human message with the AI message that follows it.
func (b *Buffer) Turns(ctx context.Context) ([]domain.Turn, error) {
	b.mu.Lock()
	msgs, err := b.messages.Messages(ctx)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var turns []domain.Turn
	for _, m := range msgs {
		switch m.GetType() {
		case llms.ChatMessageTypeHuman:
			turns = append(turns, domain.Turn{Question: m.GetContent()})
		case llms.ChatMessageTypeAI:
			if len(turns) == 0 || turns[len(turns)-1].Answer != "" {
				turns = append(turns, domain.Turn{})
			}
			turns[len(turns)-1].Answer = m.GetContent()
		}
	}
	return turns, nil
}

func (b *Buffer) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages.Clear(ctx)
}
