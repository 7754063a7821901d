// Package chat is the terminal front end. It is presentation glue only:
// all pipeline behavior lives behind the engine's Ingest/Ask API.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"docsdoctor/llm"
	"docsdoctor/llm/rag"
	"docsdoctor/pubsub"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	sourceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type (
	answerMsg struct {
		question string
		answer   llm.Answer
	}
	ingestMsg struct {
		count int
		err   error
	}
	askErrMsg struct {
		question string
		err      error
	}
	progressMsg pubsub.Event[rag.Progress]
)

// Model is the Bubble Tea model for the chat interface.
type Model struct {
	session *rag.Session
	sub     <-chan pubsub.Event[rag.Progress]
	ctx     context.Context

	input      textinput.Model
	viewport   viewport.Model
	spin       spinner.Model
	transcript []string
	status     string
	busy       bool
	ready      bool
	width      int
}

// InitialModel creates the chat model over a session.
func InitialModel(session *rag.Session, events pubsub.Subscriber[rag.Progress]) Model {
	ctx := context.Background()

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /ingest <path or glob>"
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		session:  session,
		sub:      events.Subscribe(ctx),
		ctx:      ctx,
		input:    ti,
		viewport: viewport.New(0, 0),
		spin:     sp,
		status:   "Ingest documents with /ingest, then ask away.",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForProgress())
}

// waitForProgress forwards the next pipeline event into the update loop.
func (m Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.sub
		if !ok {
			return nil
		}
		return progressMsg(event)
	}
}

func (m Model) askCmd(question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.session.Ask(m.ctx, question)
		if err != nil {
			return askErrMsg{question: question, err: err}
		}
		return answerMsg{question: question, answer: answer}
	}
}

func (m Model) ingestCmd(patterns []string) tea.Cmd {
	return func() tea.Msg {
		count, err := m.session.IngestFiles(m.ctx, patterns)
		return ingestMsg{count: count, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + ih + 2 // header, input frame, status
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				break
			}
			m.input.Reset()
			if rest, ok := strings.CutPrefix(line, "/ingest "); ok {
				m.busy = true
				m.status = "Ingesting..."
				return m, tea.Batch(m.spin.Tick, m.ingestCmd(strings.Fields(rest)))
			}
			m.busy = true
			m.status = "Thinking..."
			m.appendBlock(questionStyle.Render("You: ") + line)
			return m, tea.Batch(m.spin.Tick, m.askCmd(line))
		}

	case answerMsg:
		m.busy = false
		m.status = fmt.Sprintf("Answered from %d passage(s).", len(msg.answer.Sources))
		m.appendBlock(m.renderAnswer(msg.answer))

	case askErrMsg:
		m.busy = false
		m.status = errorStyle.Render(msg.err.Error())

	case ingestMsg:
		m.busy = false
		if msg.err != nil {
			m.status = errorStyle.Render("Ingest failed: " + msg.err.Error())
		} else {
			m.status = fmt.Sprintf("Indexed %d document(s).", msg.count)
		}

	case progressMsg:
		cmds = append(cmds, m.waitForProgress())
		switch msg.Type {
		case pubsub.DocumentIndexedEvent:
			m.status = fmt.Sprintf("Indexed %s (%d chunks)", msg.Payload.Filename, msg.Payload.Chunks)
		case pubsub.DocumentSkippedEvent:
			m.status = errorStyle.Render("Skipped " + msg.Payload.Filename)
		}

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) appendBlock(block string) {
	m.transcript = append(m.transcript, block)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.transcript, "\n\n"))
	m.viewport.GotoBottom()
}

// renderAnswer renders the answer text as markdown and lists its sources.
func (m Model) renderAnswer(answer llm.Answer) string {
	body := answer.Text
	if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(max(40, m.width-4))); err == nil {
		if out, err := r.Render(answer.Text); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}

	var sb strings.Builder
	sb.WriteString(body)
	for _, src := range answer.Sources {
		sb.WriteString("\n")
		sb.WriteString(sourceStyle.Render(fmt.Sprintf("  [%s / chunk %d] %s", src.Filename, src.ChunkIndex, src.Excerpt)))
	}
	return sb.String()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("DocsDoctor")
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spin.View() + " " + status
	}
	return header + "\n" + m.viewport.View() + "\n" + inputBoxStyle.Render(m.input.View()) + "\n" + status
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
