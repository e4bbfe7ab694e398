package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
)

const (
	msgEnterQuestion = "Please enter a question."
	msgProcessFirst  = "Please upload and process documents first."
	msgGenerating    = "Generating answer..."
	msgSearching     = "Searching..."
	msgNoSources     = "No sources found."
)

// QAPort is the TUI-facing subset of the question answering service.
type QAPort interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
	History(ctx context.Context) ([]domain.Turn, error)
	ClearHistory(ctx context.Context) error
	Ready() bool
}

// answerMsg carries the result of an asynchronous Ask.
type answerMsg struct {
	answer domain.Answer
	err    error
}

// searchMsg carries the result of an asynchronous Search.
type searchMsg struct {
	query   string
	results []domain.SearchResult
	err     error
}

const askPlaceholder = "Ask a question about your documents and press Enter"

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service     QAPort
	input       textinput.Model
	viewport    viewport.Model
	answer      *domain.Answer
	turns       []domain.Turn
	summary     string
	status      string
	cursor      int
	ready       bool
	busy        bool
	showHistory bool
	searchMode  bool
}

// New creates a new TUI model instance. summary is shown under the title.
func New(service QAPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = askPlaceholder
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	status := "Ready. Ask a question."
	if !service.Ready() {
		status = msgProcessFirst
	}
	return Model{service: service, input: ti, viewport: vp, summary: summary, status: status}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		rw, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width-rw)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.answer = &msg.answer
		m.cursor = 0
		m.showHistory = false
		m.status = fmt.Sprintf("Answered in %s with %d sources", msg.answer.Elapsed.Round(time.Millisecond), len(msg.answer.Sources))
		m.refresh()
		return m, nil
	case searchMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		sources := make([]domain.Source, 0, len(msg.results))
		for _, r := range msg.results {
			sources = append(sources, domain.Source{Filename: r.Chunk.Filename, Page: r.Chunk.Page, Snippet: r.Chunk.Text, Score: r.Score})
		}
		m.answer = &domain.Answer{Question: msg.query, Sources: sources}
		m.cursor = 0
		m.showHistory = false
		m.status = fmt.Sprintf("Found %d chunks", len(sources))
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			return m.ask()
		case "tab":
			m.searchMode = !m.searchMode
			if m.searchMode {
				m.input.Placeholder = "Search chunks and press Enter"
				m.status = "Search mode."
			} else {
				m.input.Placeholder = askPlaceholder
				m.status = "Question mode."
			}
			return m, nil
		case "ctrl+h":
			m.showHistory = !m.showHistory
			if m.showHistory {
				turns, err := m.service.History(context.Background())
				if err != nil {
					m.status = "Error: " + err.Error()
					m.showHistory = false
					return m, nil
				}
				m.turns = turns
				m.status = fmt.Sprintf("Chat history: %d turns", len(turns))
			} else {
				m.status = "Showing last answer."
			}
			m.refresh()
			return m, nil
		case "ctrl+l":
			if err := m.service.ClearHistory(context.Background()); err != nil {
				m.status = "Error: " + err.Error()
				return m, nil
			}
			m.answer = nil
			m.turns = nil
			m.cursor = 0
			m.status = "Chat cleared."
			m.refresh()
			return m, nil
		case "down":
			if n := m.sourceCount(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.refresh()
				return m, nil
			}
		case "up":
			if n := m.sourceCount(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if !m.service.Ready() {
		m.status = msgProcessFirst
		return m, nil
	}
	q := strings.TrimSpace(m.input.Value())
	if q == "" {
		m.status = msgEnterQuestion
		return m, nil
	}
	m.busy = true
	m.input.SetValue("")
	service := m.service
	if m.searchMode {
		m.status = msgSearching
		return m, func() tea.Msg {
			res, err := service.Search(context.Background(), q, 0)
			return searchMsg{query: q, results: res, err: err}
		}
	}
	m.status = msgGenerating
	return m, func() tea.Msg {
		ans, err := service.Ask(context.Background(), q)
		return answerMsg{answer: ans, err: err}
	}
}

func (m Model) sourceCount() int {
	if m.answer == nil || m.showHistory {
		return 0
	}
	return len(m.answer.Sources)
}

func (m *Model) refresh() {
	if m.showHistory {
		m.viewport.SetContent(m.renderHistory())
	} else {
		m.viewport.SetContent(m.renderAnswer())
	}
	m.viewport.GotoTop()
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Q&A")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(firstLine(m.summary))
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	wrap := lipgloss.NewStyle().Width(m.viewport.Width)
	var b strings.Builder
	b.WriteString(labelStyle.Render("Q: "))
	b.WriteString(wrap.Render(m.answer.Question))
	b.WriteString("\n\n")
	if m.answer.Answer != "" {
		b.WriteString(labelStyle.Render("A: "))
		b.WriteString(wrap.Render(m.answer.Answer))
	}
	if len(m.answer.Sources) == 0 {
		b.WriteString("\n\n")
		b.WriteString(msgNoSources)
		return b.String()
	}
	src := m.answer.Sources[m.cursor]
	title := fmt.Sprintf("Source %d/%d  %s", m.cursor+1, len(m.answer.Sources), src.Filename)
	if src.Page > 0 {
		title += fmt.Sprintf(" (page %d)", src.Page)
	}
	title += fmt.Sprintf("  score=%.3f", src.Score)
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(wrap.Render(highlightBestSentence(src.Snippet, m.answer.Question)))
	return b.String()
}

func (m Model) renderHistory() string {
	if len(m.turns) == 0 {
		return "No conversation yet."
	}
	wrap := lipgloss.NewStyle().Width(m.viewport.Width)
	parts := make([]string, 0, len(m.turns))
	for i, t := range m.turns {
		parts = append(parts, fmt.Sprintf("%s %s\n%s %s",
			labelStyle.Render(fmt.Sprintf("Q%d:", i+1)), wrap.Render(t.Question),
			labelStyle.Render(fmt.Sprintf("A%d:", i+1)), wrap.Render(t.Answer)))
	}
	return strings.Join(parts, "\n\n")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	bestIdx := -1
	bestScore := 0
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
