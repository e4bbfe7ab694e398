package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type fakePort struct {
	ready   bool
	answer  domain.Answer
	err     error
	turns   []domain.Turn
	results []domain.SearchResult
	asked   []string
	queries []string
	cleared int
}

func (f *fakePort) Ask(_ context.Context, q string) (domain.Answer, error) {
	f.asked = append(f.asked, q)
	return f.answer, f.err
}

func (f *fakePort) Search(_ context.Context, q string, _ int) ([]domain.SearchResult, error) {
	f.queries = append(f.queries, q)
	return f.results, f.err
}

func (f *fakePort) History(context.Context) ([]domain.Turn, error) { return f.turns, nil }

func (f *fakePort) ClearHistory(context.Context) error {
	f.cleared++
	return nil
}

func (f *fakePort) Ready() bool { return f.ready }

func sized(t *testing.T, port *fakePort) Model {
	t.Helper()
	m, _ := New(port, "Indexed 2 files.").Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m.(Model)
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

func sampleAnswer() domain.Answer {
	return domain.Answer{
		Question: "What is Go?",
		Answer:   "Go is a programming language.",
		Sources: []domain.Source{
			{Filename: "go.pdf", Page: 3, Snippet: "Go was designed at Google. It is compiled...", Score: 0.9},
			{Filename: "notes.txt", Snippet: "Unrelated notes...", Score: 0.1},
		},
		Elapsed: 1500 * time.Millisecond,
	}
}

func TestEmptyQuestion(t *testing.T) {
	m := sized(t, &fakePort{ready: true})
	m, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Equal(t, msgEnterQuestion, m.status)
}

func TestAskWithoutDocuments(t *testing.T) {
	port := &fakePort{}
	m := sized(t, port)
	assert.Equal(t, msgProcessFirst, m.status)

	m.input.SetValue("What is Go?")
	m, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Equal(t, msgProcessFirst, m.status)
	assert.Empty(t, port.asked)

	// missing documents are reported before a missing question
	m.input.SetValue("   ")
	m, cmd = press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Equal(t, msgProcessFirst, m.status)
}

func TestAnswerWithoutSources(t *testing.T) {
	m := sized(t, &fakePort{ready: true})
	next, _ := m.Update(answerMsg{answer: domain.Answer{Question: "Q?", Answer: "No documents available."}})
	m = next.(Model)
	assert.Contains(t, m.View(), msgNoSources)
	assert.Equal(t, "Answered in 0s with 0 sources", m.status)
}

func TestAskRunsAsCommand(t *testing.T) {
	port := &fakePort{ready: true, answer: sampleAnswer()}
	m := sized(t, port)
	m.input.SetValue("  What is Go? ")

	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Equal(t, msgGenerating, m.status)
	assert.Empty(t, m.input.Value())

	// a second Enter while busy is ignored
	_, again := press(m, tea.KeyEnter)
	assert.Nil(t, again)

	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, []string{"What is Go?"}, port.asked)
	assert.False(t, m.busy)
	assert.Equal(t, "Answered in 1.5s with 2 sources", m.status)

	view := m.View()
	assert.Contains(t, view, "Go is a programming language.")
	assert.Contains(t, view, "Source 1/2  go.pdf (page 3)  score=0.900")
	assert.Contains(t, view, "Indexed 2 files.")
}

func TestAskError(t *testing.T) {
	port := &fakePort{ready: true, err: errors.New("store offline")}
	m := sized(t, port)
	m.input.SetValue("q")
	m, cmd := press(m, tea.KeyEnter)
	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, "Error: store offline", m.status)
	assert.Nil(t, m.answer)
}

func TestSearchMode(t *testing.T) {
	port := &fakePort{ready: true, results: []domain.SearchResult{
		{Chunk: domain.Chunk{Filename: "go.pdf", Page: 2, Text: "Go has goroutines."}, Score: 0.75},
	}}
	m := sized(t, port)

	m, _ = press(m, tea.KeyTab)
	assert.True(t, m.searchMode)
	assert.Equal(t, "Search mode.", m.status)

	m.input.SetValue("goroutines")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Equal(t, msgSearching, m.status)

	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, []string{"goroutines"}, port.queries)
	assert.Empty(t, port.asked)
	assert.Equal(t, "Found 1 chunks", m.status)
	view := m.View()
	assert.Contains(t, view, "Source 1/1  go.pdf (page 2)  score=0.750")
	assert.NotContains(t, view, "A: ")

	m, _ = press(m, tea.KeyTab)
	assert.False(t, m.searchMode)
	assert.Equal(t, "Question mode.", m.status)
}

func TestCycleSources(t *testing.T) {
	m := sized(t, &fakePort{ready: true})
	next, _ := m.Update(answerMsg{answer: sampleAnswer()})
	m = next.(Model)

	m, _ = press(m, tea.KeyDown)
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.View(), "Source 2/2  notes.txt  score=0.100")
	m, _ = press(m, tea.KeyDown)
	assert.Equal(t, 0, m.cursor)
	m, _ = press(m, tea.KeyUp)
	assert.Equal(t, 1, m.cursor)
}

func TestHistoryToggle(t *testing.T) {
	port := &fakePort{ready: true, turns: []domain.Turn{{Question: "Who made Go?", Answer: "Google."}}}
	m := sized(t, port)

	m, _ = press(m, tea.KeyCtrlH)
	assert.True(t, m.showHistory)
	assert.Contains(t, m.View(), "Who made Go?")
	assert.Contains(t, m.View(), "Google.")
	assert.Equal(t, "Chat history: 1 turns", m.status)

	m, _ = press(m, tea.KeyCtrlH)
	assert.False(t, m.showHistory)
	assert.Contains(t, m.View(), "No answer yet.")
}

func TestClearChat(t *testing.T) {
	port := &fakePort{ready: true}
	m := sized(t, port)
	next, _ := m.Update(answerMsg{answer: sampleAnswer()})
	m = next.(Model)

	m, _ = press(m, tea.KeyCtrlL)
	assert.Equal(t, 1, port.cleared)
	assert.Nil(t, m.answer)
	assert.Equal(t, "Chat cleared.", m.status)
	assert.Contains(t, m.View(), "No answer yet.")
}

func TestQuit(t *testing.T) {
	m := sized(t, &fakePort{})
	_, cmd := press(m, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestHighlightBestSentence(t *testing.T) {
	text := "Cats sleep a lot. Go compiles fast"
	assert.Equal(t, text, highlightBestSentence(text, "zebra"))
	assert.Equal(t, "", highlightBestSentence("", "go"))
	assert.Equal(t, 2, tokenOverlapScore(toTokenSet("go compiles"), "Go compiles fast"))
}
