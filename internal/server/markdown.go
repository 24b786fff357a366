// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

	// htmlPolicy strips anything a model answer could smuggle into the page.
	htmlPolicy = bluemonday.UGCPolicy()
)

// renderMarkdown converts an answer to sanitized HTML.
func renderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("rendering answer: %w", err)
	}
	return htmlPolicy.SanitizeReader(&buf).String(), nil
}
