// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Retrieval modes accepted by RetrievalConfig.Mode.
const (
	RetrievalVector = "vector"
	RetrievalHybrid = "hybrid"
)

// LogConfig controls diagnostic logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// HTTPConfig holds shared HTTP settings used by every outbound client.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout. Zero disables it.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is sent to the search APIs (e.g. "research-chat/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// BrowserUserAgent is sent when scraping result pages.
	BrowserUserAgent string `json:"browser_user_agent" yaml:"browser_user_agent" mapstructure:"browser_user_agent"`
}

// FetchConfig holds settings for the source fetchers.
type FetchConfig struct {
	// MaxResults is the per-source result limit (default 3).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	EnableArxiv   bool `json:"enable_arxiv" yaml:"enable_arxiv" mapstructure:"enable_arxiv"`
	EnablePubMed  bool `json:"enable_pubmed" yaml:"enable_pubmed" mapstructure:"enable_pubmed"`
	EnableScholar bool `json:"enable_scholar" yaml:"enable_scholar" mapstructure:"enable_scholar"`

	// ScrapeScholarPages re-fetches each Scholar result page for a fuller abstract.
	ScrapeScholarPages bool `json:"scrape_scholar_pages" yaml:"scrape_scholar_pages" mapstructure:"scrape_scholar_pages"`

	// SerpAPIKey authenticates Scholar searches. Usually supplied through
	// SERPAPI_API_KEY or .secrets/serpapi-api-key.
	SerpAPIKey string `json:"serpapi_api_key,omitempty" yaml:"serpapi_api_key,omitempty" mapstructure:"serpapi_api_key"`
}

// NormalizeConfig holds settings for the document normalizer.
type NormalizeConfig struct {
	// MaxWords is the per-document word budget (default 150).
	MaxWords int `json:"max_words" yaml:"max_words" mapstructure:"max_words"`
}

// OpenAIConfig holds settings for the chat-completion and embedding APIs.
type OpenAIConfig struct {
	// APIKey is usually supplied through OPENAI_API_KEY.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	BaseURL        string  `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	ChatModel      string  `json:"chat_model" yaml:"chat_model" mapstructure:"chat_model"`
	EmbeddingModel string  `json:"embedding_model" yaml:"embedding_model" mapstructure:"embedding_model"`
	Temperature    float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
}

// RetrievalConfig holds settings for the retrieval index.
type RetrievalConfig struct {
	// TopK is the number of documents handed to the model per question (default 4).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// Mode is "vector" (default) or "hybrid".
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`
}

// MemoryConfig holds settings for the conversation summary buffer.
type MemoryConfig struct {
	// MaxTokens bounds the verbatim turn buffer before older turns are
	// folded into the running summary (default 1000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig holds settings for the web front-end.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// SessionTTL drops sessions idle for longer than this (default 1h).
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl" mapstructure:"session_ttl"`
}

// Config groups all settings for research-chat.
type Config struct {
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
	HTTP      HTTPConfig      `json:"http" yaml:"http" mapstructure:"http"`
	Fetch     FetchConfig     `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Normalize NormalizeConfig `json:"normalize" yaml:"normalize" mapstructure:"normalize"`
	OpenAI    OpenAIConfig    `json:"openai" yaml:"openai" mapstructure:"openai"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	Memory    MemoryConfig    `json:"memory" yaml:"memory" mapstructure:"memory"`
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
}

// DefaultConfig returns the settings used when no config file or
// environment override is present.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		HTTP: HTTPConfig{
			Timeout:          60 * time.Second,
			UserAgent:        "research-chat/0.1",
			BrowserUserAgent: "Mozilla/5.0",
		},
		Fetch: FetchConfig{
			MaxResults:         3,
			EnableArxiv:        true,
			EnablePubMed:       true,
			EnableScholar:      true,
			ScrapeScholarPages: true,
		},
		Normalize: NormalizeConfig{MaxWords: 150},
		OpenAI: OpenAIConfig{
			BaseURL:        "https://api.openai.com/v1",
			ChatModel:      "gpt-4o",
			EmbeddingModel: "text-embedding-ada-002",
			Temperature:    0,
		},
		Retrieval: RetrievalConfig{TopK: 4, Mode: RetrievalVector},
		Memory:    MemoryConfig{MaxTokens: 1000},
		Server:    ServerConfig{Addr: ":8501", SessionTTL: time.Hour},
	}
}
