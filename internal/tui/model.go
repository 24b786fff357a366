// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tui is the terminal front-end: prompt for a topic, build its
// session, then answer questions until a new topic is requested.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/research-chat/internal/chat"
	"github.com/pdiddy/research-chat/internal/pipeline"
)

// Builder turns a topic into a ready session.
type Builder interface {
	Build(ctx context.Context, topic string) (*pipeline.Result, error)
}

type phase int

const (
	phaseTopic phase = iota
	phaseBuilding
	phaseQuestion
	phaseAsking
)

const (
	topicPlaceholder    = "e.g., Sleep and Memory Consolidation"
	questionPlaceholder = "Ask a question about the papers"
)

type builtMsg struct {
	result *pipeline.Result
	err    error
}

type answeredMsg struct {
	answer chat.Answer
	err    error
}

// Model is the Bubble Tea model for the chat front-end.
type Model struct {
	ctx      context.Context
	builder  Builder
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	phase  phase
	result *pipeline.Result
	answer *chat.Answer
	status string
	failed bool
	ready  bool
}

// New returns a model waiting for a topic. ctx bounds every build and
// question.
func New(ctx context.Context, b Builder) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = topicPlaceholder
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		builder:  b,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(0, 0),
		status:   "Enter your medical research topic.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Result returns the active session, or nil before the first build.
func (m Model) Result() *pipeline.Result { return m.result }

// Close releases the active session.
func (m Model) Close() error { return m.result.Close() }

// Update handles key, window, and pipeline events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := answerBoxStyle.GetFrameSize()
		_, inputFrame := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + inputFrame + 1 + frame // header, status, input, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyCtrlN:
			if m.phase == phaseQuestion {
				return m.newTopic(), nil
			}
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case builtMsg:
		if msg.err != nil {
			m.phase = phaseTopic
			m.fail(msg.err)
			return m, nil
		}
		m.result.Close()
		m.result = msg.result
		m.answer = nil
		m.phase = phaseQuestion
		m.failed = false
		m.status = fmt.Sprintf("Ready! %d papers indexed for %q. Ask away (ctrl+n: new topic).",
			len(msg.result.Documents), msg.result.Topic)
		m.input.Placeholder = questionPlaceholder
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case answeredMsg:
		m.phase = phaseQuestion
		if msg.err != nil {
			m.fail(msg.err)
			return m, nil
		}
		m.answer = &msg.answer
		m.failed = false
		m.status = "Answered. Ask another question (ctrl+n: new topic)."
		m.viewport.SetContent(m.renderAnswer())
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.busy() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.busy() {
		return m, nil
	}
	m.input.Reset()
	m.failed = false

	if m.phase == phaseTopic {
		m.phase = phaseBuilding
		m.status = "Fetching papers for " + text + "..."
		return m, tea.Batch(m.spinner.Tick, m.buildCmd(text))
	}
	m.phase = phaseAsking
	m.status = "Thinking..."
	return m, tea.Batch(m.spinner.Tick, m.askCmd(text))
}

func (m Model) newTopic() Model {
	m.result.Close()
	m.result = nil
	m.answer = nil
	m.phase = phaseTopic
	m.failed = false
	m.status = "Enter a new research topic."
	m.input.Reset()
	m.input.Placeholder = topicPlaceholder
	m.viewport.SetContent(m.renderAnswer())
	return m
}

func (m *Model) fail(err error) {
	m.failed = true
	m.status = "Error: " + err.Error()
}

func (m Model) busy() bool {
	return m.phase == phaseBuilding || m.phase == phaseAsking
}

func (m Model) buildCmd(topic string) tea.Cmd {
	ctx, b := m.ctx, m.builder
	return func() tea.Msg {
		res, err := b.Build(ctx, topic)
		return builtMsg{result: res, err: err}
	}
}

func (m Model) askCmd(question string) tea.Cmd {
	ctx, session := m.ctx, m.result.Session
	return func() tea.Msg {
		ans, err := session.Ask(ctx, question)
		return answeredMsg{answer: ans, err: err}
	}
}

// View renders the header, last answer, input, and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Medical Research Chatbot (RAG)")
	if m.result != nil {
		header += "  " + topicStyle.Render(m.result.Topic)
	}

	status := statusStyle.Render(m.status)
	if m.failed {
		status = errorStyle.Render(m.status)
	}
	if m.busy() {
		status = m.spinner.View() + " " + status
	}

	return header + "\n" +
		answerBoxStyle.Render(m.viewport.View()) + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		status
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render("Answer:"))
	b.WriteString(" ")
	b.WriteString(m.answer.Text)
	if len(m.answer.Sources) > 0 {
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Sources:"))
		for _, s := range m.answer.Sources {
			fmt.Fprintf(&b, "\n  - %s (%s)", s.Title, s.Source)
		}
	}
	return lipgloss.NewStyle().Width(m.viewport.Width).Render(b.String())
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	topicStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle     = lipgloss.NewStyle().Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
