// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"log/slog"

	"github.com/pdiddy/research-chat/internal/fetch"
	"github.com/pdiddy/research-chat/internal/httputil"
	"github.com/pdiddy/research-chat/internal/metrics"
	"github.com/pdiddy/research-chat/internal/openai"
	"github.com/pdiddy/research-chat/internal/pipeline"
	"github.com/pdiddy/research-chat/pkg/types"
)

// newBuilder wires the fetchers and the OpenAI client into a pipeline
// builder sharing one HTTP client.
func newBuilder(c types.Config, m *metrics.Metrics, log *slog.Logger) *pipeline.Builder {
	warnMissingKeys(c, log)

	client := httputil.NewClient(c.HTTP.Timeout)
	llm := openai.FromConfig(c.OpenAI, client, m, log)
	return &pipeline.Builder{
		Fetchers: fetch.FromConfig(c, client, log),
		Embedder: llm,
		LLM:      llm,
		Config:   c,
		Metrics:  m,
		Logger:   log,
	}
}

// warnMissingKeys logs the keys whose absence will surface later as
// authentication failures from the upstream APIs.
func warnMissingKeys(c types.Config, log *slog.Logger) {
	if c.OpenAI.APIKey == "" {
		log.Warn("OPENAI_API_KEY is not set; embedding and chat calls will fail")
	}
	warnMissingSerpAPIKey(c, log)
}

func warnMissingSerpAPIKey(c types.Config, log *slog.Logger) {
	if c.Fetch.EnableScholar && c.Fetch.SerpAPIKey == "" {
		log.Warn("SERPAPI_API_KEY is not set; Google Scholar searches will fail")
	}
}
