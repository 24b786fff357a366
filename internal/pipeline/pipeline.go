// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline turns a topic into a ready chat session: fetch papers,
// normalize them, build the retrieval index, and open the session.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pdiddy/research-chat/internal/chat"
	"github.com/pdiddy/research-chat/internal/fetch"
	"github.com/pdiddy/research-chat/internal/index"
	"github.com/pdiddy/research-chat/internal/logging"
	"github.com/pdiddy/research-chat/internal/metrics"
	"github.com/pdiddy/research-chat/internal/normalize"
	"github.com/pdiddy/research-chat/pkg/types"
)

// ErrEmptyTopic is returned by Build for a blank topic.
var ErrEmptyTopic = errors.New("topic is empty")

// Builder holds everything needed to build a session for a topic.
type Builder struct {
	Fetchers []fetch.Fetcher
	Embedder index.Embedder
	LLM      chat.LLM
	Config   types.Config
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Result is a freshly built session together with what it was built from.
type Result struct {
	Topic     string
	Records   []types.PaperRecord
	Documents []types.NormalizedDocument
	Session   *chat.Session
}

// Sources returns the metadata of every indexed document, in build order.
func (r *Result) Sources() []types.DocumentMetadata {
	out := make([]types.DocumentMetadata, len(r.Documents))
	for i, d := range r.Documents {
		out[i] = d.Metadata
	}
	return out
}

// Close releases the session's index.
func (r *Result) Close() error {
	if r == nil || r.Session == nil {
		return nil
	}
	return r.Session.Close()
}

// Build runs fetch, normalize, and index for topic and returns a new
// session. Any fetch or embedding failure aborts the build. Zero documents
// across all sources yields an error wrapping index.ErrEmpty.
func (b *Builder) Build(ctx context.Context, topic string) (*Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	logger := b.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	start := time.Now()

	agg := &fetch.Aggregator{Fetchers: b.Fetchers, Metrics: b.Metrics, Logger: logger}
	records, err := agg.Fetch(ctx, topic, b.Config.Fetch.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("fetching papers: %w", err)
	}
	logger.Info("fetched papers", "topic", topic, "records", len(records))

	docs := normalize.Normalize(records, b.Config.Normalize.MaxWords)

	idx, err := index.Build(ctx, b.Embedder, docs, index.Options{
		TopK:    b.Config.Retrieval.TopK,
		Mode:    b.Config.Retrieval.Mode,
		Metrics: b.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("building index for %q: %w", topic, err)
	}

	session := chat.NewSession(b.LLM, idx, chat.Options{
		MaxTokens: b.Config.Memory.MaxTokens,
		Logger:    logger,
	})
	logger.Info("session ready", "topic", topic, "documents", idx.Len(), "elapsed", time.Since(start))

	return &Result{
		Topic:     topic,
		Records:   records,
		Documents: docs,
		Session:   session,
	}, nil
}
