// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pdiddy/research-chat/pkg/types"
)

// DefaultMaxTokens bounds the verbatim turn buffer.
const DefaultMaxTokens = 1000

// Memory is a conversation summary buffer: recent turns are kept verbatim
// and, once they exceed the token budget, the oldest are folded into a
// running summary by the LLM.
type Memory struct {
	llm       LLM
	maxTokens int

	mu      sync.Mutex
	summary string
	buffer  []types.ChatMessage
}

// NewMemory returns an empty memory. A non-positive maxTokens uses
// DefaultMaxTokens.
func NewMemory(llm LLM, maxTokens int) *Memory {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Memory{llm: llm, maxTokens: maxTokens}
}

// EstimateTokens approximates a token count as one token per four
// characters, rounded up.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// Save appends one question/answer turn and prunes the buffer back under
// the budget. When the summarize call fails the turns stay in the buffer
// and the error is returned.
func (m *Memory) Save(ctx context.Context, question, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buffer = append(m.buffer,
		types.ChatMessage{Role: types.RoleUser, Content: question},
		types.ChatMessage{Role: types.RoleAssistant, Content: answer},
	)
	if EstimateTokens(bufferString(m.buffer)) <= m.maxTokens {
		return nil
	}

	keep := m.buffer
	var pruned []types.ChatMessage
	for len(keep) > 0 && EstimateTokens(bufferString(keep)) > m.maxTokens {
		pruned = append(pruned, keep[0])
		keep = keep[1:]
	}

	prompt, err := summarizePrompt(m.summary, bufferString(pruned))
	if err != nil {
		return err
	}
	summary, err := m.llm.Chat(ctx, []types.ChatMessage{{Role: types.RoleUser, Content: prompt}})
	if err != nil {
		return fmt.Errorf("summarizing conversation: %w", err)
	}

	m.summary = summary
	m.buffer = append([]types.ChatMessage(nil), keep...)
	return nil
}

// Messages returns the summary (as a system message, when present)
// followed by the buffered turns.
func (m *Memory) Messages() []types.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.ChatMessage, 0, len(m.buffer)+1)
	if m.summary != "" {
		out = append(out, types.ChatMessage{Role: types.RoleSystem, Content: m.summary})
	}
	return append(out, m.buffer...)
}

// History renders Messages as "Human: …" / "AI: …" lines.
func (m *Memory) History() string {
	return bufferString(m.Messages())
}

// Summary returns the running summary of pruned turns.
func (m *Memory) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

// Empty reports whether nothing has been said yet.
func (m *Memory) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary == "" && len(m.buffer) == 0
}

// Reset forgets the summary and all buffered turns.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = ""
	m.buffer = nil
}
