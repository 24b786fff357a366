// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chat answers questions about one topic's documents, carrying a
// summarized conversation history between questions.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/pdiddy/research-chat/internal/index"
	"github.com/pdiddy/research-chat/internal/logging"
	"github.com/pdiddy/research-chat/pkg/types"
)

// ErrEmptyQuestion is returned by Ask for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// LLM is a chat-completion model.
type LLM interface {
	Chat(ctx context.Context, messages []types.ChatMessage) (string, error)
}

// Retriever returns the documents most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]index.Hit, error)
}

// Answer is the reply to one question.
type Answer struct {
	Text string `json:"answer"`

	// Question is the standalone form actually used for retrieval.
	Question string `json:"question"`

	Sources []types.DocumentMetadata `json:"sources"`
}

// Options configures a Session.
type Options struct {
	// MaxTokens is the memory buffer budget (default 1000).
	MaxTokens int
	Logger    *slog.Logger
}

// Session is an active conversation over one retrieval index. Ask calls
// are serialized.
type Session struct {
	llm       LLM
	retriever Retriever
	memory    *Memory
	logger    *slog.Logger

	mu sync.Mutex
}

// NewSession returns a session with empty memory.
func NewSession(llm LLM, retriever Retriever, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{
		llm:       llm,
		retriever: retriever,
		memory:    NewMemory(llm, opts.MaxTokens),
		logger:    logger,
	}
}

// Memory exposes the conversation memory.
func (s *Session) Memory() *Memory { return s.memory }

// Ask answers question using the retrieved documents and the conversation
// so far, then records the turn.
func (s *Session) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	standalone := question
	if !s.memory.Empty() {
		prompt, err := condensePrompt(s.memory.History(), question)
		if err != nil {
			return Answer{}, err
		}
		condensed, err := s.llm.Chat(ctx, []types.ChatMessage{{Role: types.RoleUser, Content: prompt}})
		if err != nil {
			return Answer{}, fmt.Errorf("condensing question: %w", err)
		}
		if condensed = strings.TrimSpace(condensed); condensed != "" {
			standalone = condensed
		}
		s.logger.Debug("condensed question", "question", question, "standalone", standalone)
	}

	hits, err := s.retriever.Retrieve(ctx, standalone)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving documents: %w", err)
	}

	messages, err := answerMessages(hits, standalone)
	if err != nil {
		return Answer{}, err
	}
	text, err := s.llm.Chat(ctx, messages)
	if err != nil {
		return Answer{}, fmt.Errorf("answering question: %w", err)
	}

	if err := s.memory.Save(ctx, question, text); err != nil {
		// The answer stands; the turn stays in the buffer unsummarized.
		s.logger.Warn("conversation memory not updated", "error", err)
	}

	sources := make([]types.DocumentMetadata, len(hits))
	for i, h := range hits {
		sources[i] = h.Document.Metadata
	}
	return Answer{Text: text, Question: standalone, Sources: sources}, nil
}

// Close releases the retriever when it holds resources.
func (s *Session) Close() error {
	if c, ok := s.retriever.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
