// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-chat/internal/chat"
	"github.com/pdiddy/research-chat/internal/index"
	"github.com/pdiddy/research-chat/internal/pipeline"
	"github.com/pdiddy/research-chat/pkg/types"
)

type stubRetriever struct{ closed bool }

func (r *stubRetriever) Retrieve(context.Context, string) ([]index.Hit, error) {
	return []index.Hit{{Document: types.NormalizedDocument{
		ID: "doc-1", Text: "Title: Spindles",
		Metadata: types.DocumentMetadata{Title: "Spindles", Source: types.SourceArxiv},
	}}}, nil
}

func (r *stubRetriever) Close() error {
	r.closed = true
	return nil
}

type stubLLM struct{}

func (stubLLM) Chat(context.Context, []types.ChatMessage) (string, error) {
	return "Spindles consolidate memory.", nil
}

type stubBuilder struct {
	err    error
	topics []string
}

func (b *stubBuilder) Build(_ context.Context, topic string) (*pipeline.Result, error) {
	b.topics = append(b.topics, topic)
	if b.err != nil {
		return nil, b.err
	}
	return newResult(topic), nil
}

func newResult(topic string) *pipeline.Result {
	return &pipeline.Result{
		Topic:     topic,
		Documents: []types.NormalizedDocument{{ID: "doc-1"}},
		Session:   chat.NewSession(stubLLM{}, &stubRetriever{}, chat.Options{}),
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func sized(t *testing.T, m Model) Model {
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func TestTopicThenQuestion(t *testing.T) {
	b := &stubBuilder{}
	m := sized(t, New(context.Background(), b))
	assert.Equal(t, phaseTopic, m.phase)

	m.input.SetValue("Sleep and Memory Consolidation")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, phaseBuilding, m.phase)
	assert.NotNil(t, cmd)

	msg := m.buildCmd("Sleep and Memory Consolidation")()
	m, _ = update(t, m, msg)
	assert.Equal(t, phaseQuestion, m.phase)
	require.NotNil(t, m.Result())
	assert.Equal(t, []string{"Sleep and Memory Consolidation"}, b.topics)
	assert.Contains(t, m.status, "Ready!")

	m.input.SetValue("What do spindles do?")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, phaseAsking, m.phase)

	m, _ = update(t, m, m.askCmd("What do spindles do?")())
	assert.Equal(t, phaseQuestion, m.phase)
	require.NotNil(t, m.answer)
	assert.Equal(t, "Spindles consolidate memory.", m.answer.Text)
	assert.Contains(t, m.View(), "Spindles consolidate memory.")
}

func TestBuildErrorReturnsToTopic(t *testing.T) {
	m := sized(t, New(context.Background(), &stubBuilder{}))
	m.phase = phaseBuilding
	m, _ = update(t, m, builtMsg{err: errors.New("SerpAPI: Invalid API key")})
	assert.Equal(t, phaseTopic, m.phase)
	assert.True(t, m.failed)
	assert.Contains(t, m.View(), "Invalid API key")
}

func TestNewTopicClosesSession(t *testing.T) {
	m := sized(t, New(context.Background(), &stubBuilder{}))
	ret := &stubRetriever{}
	res := &pipeline.Result{Topic: "sleep", Session: chat.NewSession(stubLLM{}, ret, chat.Options{})}
	m.phase = phaseBuilding
	m, _ = update(t, m, builtMsg{result: res})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Equal(t, phaseTopic, m.phase)
	assert.Nil(t, m.Result())
	assert.True(t, ret.closed)
}

func TestEmptyInputIgnored(t *testing.T) {
	m := sized(t, New(context.Background(), &stubBuilder{}))
	m.input.SetValue("   ")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, phaseTopic, m.phase)
	assert.Nil(t, cmd)
}

func TestCtrlCQuits(t *testing.T) {
	m := New(context.Background(), &stubBuilder{})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
