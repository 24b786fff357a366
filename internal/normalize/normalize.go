// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize flattens paper records into bounded-length text
// documents ready for embedding.
package normalize

import (
	"strconv"
	"strings"

	"github.com/pdiddy/research-chat/pkg/types"
)

// DefaultMaxWords is the per-document word budget.
const DefaultMaxWords = 150

// Normalize converts records into documents, one per record and in the same
// order. Each document's text is the "Title / Abstract / Source" block cut
// to maxWords whitespace-separated words. A non-positive maxWords uses
// DefaultMaxWords.
func Normalize(records []types.PaperRecord, maxWords int) []types.NormalizedDocument {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	docs := make([]types.NormalizedDocument, len(records))
	for i, r := range records {
		docs[i] = types.NormalizedDocument{
			ID:   "doc-" + strconv.Itoa(i+1),
			Text: Truncate(Render(r), maxWords),
			Metadata: types.DocumentMetadata{
				Title:  r.Title,
				Source: r.Source,
				URL:    r.URL,
			},
		}
	}
	return docs
}

// Render returns the untruncated text block for one record.
func Render(r types.PaperRecord) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(r.Title)
	b.WriteString("\nAbstract: ")
	b.WriteString(r.Summary)
	b.WriteString("\nSource: ")
	b.WriteString(string(r.Source))
	return b.String()
}

// Truncate keeps the first n whitespace-separated words of text, rejoined
// with single spaces. Line breaks are not preserved.
func Truncate(text string, n int) string {
	words := strings.Fields(text)
	if n >= 0 && len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
