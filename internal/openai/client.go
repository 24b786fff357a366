// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package openai is a small client for the OpenAI chat-completions and
// embeddings endpoints. It implements the chat.LLM and index.Embedder
// interfaces.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/research-chat/internal/httputil"
	"github.com/pdiddy/research-chat/internal/logging"
	"github.com/pdiddy/research-chat/internal/metrics"
	"github.com/pdiddy/research-chat/pkg/types"
)

// DefaultBaseURL is the public OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Defaults applied by New.
const (
	DefaultChatModel      = "gpt-4o"
	DefaultEmbeddingModel = "text-embedding-ada-002"
)

// ErrNoChoices is returned when a chat completion carries no message.
var ErrNoChoices = errors.New("openai: response contained no choices")

// Client talks to an OpenAI-compatible API.
type Client struct {
	apiKey         string
	baseURL        string
	httpClient     *http.Client
	chatModel      string
	embeddingModel string
	temperature    float64
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithChatModel sets the chat-completion model.
func WithChatModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithTemperature sets the sampling temperature for chat completions.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithMetrics records call counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client authenticating with apiKey. An empty key is allowed;
// the API then rejects every call with 401.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:         strings.TrimSpace(apiKey),
		baseURL:        DefaultBaseURL,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		chatModel:      DefaultChatModel,
		embeddingModel: DefaultEmbeddingModel,
		logger:         logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig builds a client from the openai config section.
func FromConfig(cfg types.OpenAIConfig, hc *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	return New(cfg.APIKey,
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(hc),
		WithChatModel(cfg.ChatModel),
		WithEmbeddingModel(cfg.EmbeddingModel),
		WithTemperature(cfg.Temperature),
		WithMetrics(m),
		WithLogger(logger),
	)
}

// ChatModel returns the configured chat model name.
func (c *Client) ChatModel() string { return c.chatModel }

type chatRequest struct {
	Model       string              `json:"model"`
	Messages    []types.ChatMessage `json:"messages"`
	Temperature *float64            `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Index   int               `json:"index"`
		Message types.ChatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Chat sends one chat-completion request and returns the first choice's
// content.
func (c *Client) Chat(ctx context.Context, messages []types.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("openai: no messages")
	}
	start := time.Now()
	temp := c.temperature
	var resp chatResponse
	err := c.post(ctx, "/chat/completions", chatRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: &temp,
	}, &resp)
	if err == nil && len(resp.Choices) == 0 {
		err = ErrNoChoices
	}
	c.metrics.ObserveLLM("chat", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	c.logger.Debug("chat completion", "model", c.chatModel, "elapsed", time.Since(start))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()
	var resp embeddingResponse
	err := c.post(ctx, "/embeddings", embeddingRequest{Model: c.embeddingModel, Input: texts}, &resp)
	if err == nil && len(resp.Data) != len(texts) {
		err = fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	c.metrics.ObserveLLM("embeddings", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	c.logger.Debug("embeddings", "model", c.embeddingModel, "inputs", len(texts), "elapsed", time.Since(start))
	return vectors, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(c.baseURL, path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := httputil.Do(c.httpClient, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// endpoint joins the API root and path, adding /v1 when the root lacks it.
func endpoint(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + path
}
