package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taxrag/internal/domain"
	"taxrag/internal/service"
)

// Asker is the TUI-facing subset of the pipeline.
type Asker interface {
	Run(ctx context.Context, query string) (*service.Answer, error)
}

// answerMsg carries a finished query back into Update.
type answerMsg struct {
	query  string
	answer *service.Answer
	err    error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx      context.Context
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	answer   *service.Answer
	summary  string
	status   string
	cursor   int
	ready    bool
	busy     bool
}

// New creates a new TUI model instance. summary is shown under the header.
func New(ctx context.Context, asker Asker, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a tax question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, asker: asker, input: ti, viewport: vp, summary: summary, status: "Loaded. Type a question."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		a, err := m.asker.Run(m.ctx, q)
		return answerMsg{query: q, answer: a, err: err}
	}
}

func (m Model) rules() []domain.SearchResult {
	if m.answer == nil {
		return nil
	}
	return m.answer.Rules
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.render())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			m.answer = msg.answer
			m.cursor = 0
			m.status = fmt.Sprintf("Answer for %q", msg.query)
			if !msg.answer.Result.OK() {
				m.status = "Generation failed; showing retrieved rules"
			}
		}
		m.viewport.SetContent(m.render())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		rules := m.rules()
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Thinking..."
				m.input.SetValue("")
				return m, m.ask(q)
			}
		case "down":
			if len(rules) > 0 {
				m.cursor = (m.cursor + 1) % len(rules)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "up":
			if len(rules) > 0 {
				m.cursor = (m.cursor - 1 + len(rules)) % len(rules)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Tax Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(m.answer.Text())
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Slots: "))
	b.WriteString(m.answer.Slots.String())
	b.WriteString("\n\n")

	rules := m.answer.Rules
	if len(rules) == 0 {
		b.WriteString("No rules retrieved.")
		return b.String()
	}
	r := rules[m.cursor]
	fmt.Fprintf(&b, "Rule %d/%d  score=%.3f\n", m.cursor+1, len(rules), r.Score)
	b.WriteString(highlightBestField(ruleFields(r.Rule), m.answer.Query))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
)

func ruleFields(r domain.Rule) []string {
	return []string{
		"Asset type:     " + r.AssetType,
		"Holding period: " + r.HoldingPeriod,
		"Tax treatment:  " + r.TaxTreatment,
		"Rate rules:     " + r.RateRules,
		"Forms:          " + strings.Join(r.Forms, ", "),
		"Deadline:       " + r.Deadline,
	}
}

// highlightBestField renders the rule fields one per line, highlighting the
// field sharing the most words with the query.
func highlightBestField(fields []string, query string) string {
	qTokens := toTokenSet(query)
	bestIdx, bestScore := -1, 0
	for i, f := range fields {
		if score := tokenOverlapScore(qTokens, f); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		if i == bestIdx {
			out[i] = highlightStyle.Render(f)
		} else {
			out[i] = f
		}
	}
	return strings.Join(out, "\n")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, text string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(text), -1)
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
