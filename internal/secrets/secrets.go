// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files, one
// secret per file: the filename is the key name and the trimmed contents are
// the value. Environment variables take precedence over files.
//
// Recognized key files: openai-api-key, serpapi-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Key file names and the environment variables that override them.
const (
	OpenAIKeyFile  = "openai-api-key"
	SerpAPIKeyFile = "serpapi-api-key"

	OpenAIKeyEnv  = "OPENAI_API_KEY"
	SerpAPIKeyEnv = "SERPAPI_API_KEY"
)

// Set maps key names to secret values.
type Set map[string]string

// Load reads every regular, non-hidden file in dir. A missing directory is
// not an error and yields an empty set. Unreadable files are logged and
// skipped.
func Load(dir string, logger *slog.Logger) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	set := make(Set)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if logger != nil {
				logger.Warn("could not read secret", "name", name, "error", err)
			}
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			set[name] = value
		}
	}
	return set, nil
}

// Resolve returns the environment variable env when it is non-empty,
// otherwise the secret stored under key.
func (s Set) Resolve(key, env string) string {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	return s[key]
}

// Keys returns the loaded key names, sorted. Values are never exposed.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
