// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-chat CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-chat/internal/logging"
	"github.com/pdiddy/research-chat/internal/secrets"
	"github.com/pdiddy/research-chat/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg and logger are populated by the root command before any subcommand runs.
var (
	cfg    types.Config
	logger *slog.Logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "research-chat",
	Short: "Chat with recent papers on a research topic",
	Long: `research-chat fetches recent paper abstracts for a topic from arXiv,
PubMed, and Google Scholar, indexes them with OpenAI embeddings, and answers
questions about them with a chat model, keeping a summarized conversation
history between questions.

Use "serve" for the web front-end, "chat" for the terminal front-end, "ask"
for one-shot questions, and "fetch" to inspect what the sources return.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c
		logger = logging.New(os.Stderr, cfg.Log.Level)

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			logger.Debug("loaded secrets", "keys", s.Keys())
		}
		if cfg.OpenAI.APIKey == "" {
			cfg.OpenAI.APIKey = s.Resolve(secrets.OpenAIKeyFile, secrets.OpenAIKeyEnv)
		}
		if cfg.Fetch.SerpAPIKey == "" {
			cfg.Fetch.SerpAPIKey = s.Resolve(secrets.SerpAPIKeyFile, secrets.SerpAPIKeyEnv)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-chat.yaml or ~/.config/research-chat/research-chat.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-chat")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-chat"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_CHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper(), types.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so that environment overrides
// reach Unmarshal even when no config file sets the key.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.browser_user_agent", d.HTTP.BrowserUserAgent)

	v.SetDefault("fetch.max_results", d.Fetch.MaxResults)
	v.SetDefault("fetch.enable_arxiv", d.Fetch.EnableArxiv)
	v.SetDefault("fetch.enable_pubmed", d.Fetch.EnablePubMed)
	v.SetDefault("fetch.enable_scholar", d.Fetch.EnableScholar)
	v.SetDefault("fetch.scrape_scholar_pages", d.Fetch.ScrapeScholarPages)
	v.SetDefault("fetch.serpapi_api_key", d.Fetch.SerpAPIKey)

	v.SetDefault("normalize.max_words", d.Normalize.MaxWords)

	v.SetDefault("openai.api_key", d.OpenAI.APIKey)
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)
	v.SetDefault("openai.chat_model", d.OpenAI.ChatModel)
	v.SetDefault("openai.embedding_model", d.OpenAI.EmbeddingModel)
	v.SetDefault("openai.temperature", d.OpenAI.Temperature)

	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.mode", d.Retrieval.Mode)

	v.SetDefault("memory.max_tokens", d.Memory.MaxTokens)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.session_ttl", d.Server.SessionTTL)
}

// loadConfig decodes the merged flag, env, file, and default settings.
func loadConfig() (types.Config, error) {
	var c types.Config
	if err := viper.Unmarshal(&c); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	switch c.Retrieval.Mode {
	case types.RetrievalVector, types.RetrievalHybrid:
	default:
		return types.Config{}, fmt.Errorf("retrieval.mode must be %q or %q, got %q",
			types.RetrievalVector, types.RetrievalHybrid, c.Retrieval.Mode)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
