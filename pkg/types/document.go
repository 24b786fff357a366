// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research-chat pipeline:
// fetched paper records, normalized documents, and configuration.
package types

// DocumentMetadata travels with a normalized document into the index and
// back out with every retrieval hit.
type DocumentMetadata struct {
	Title  string `json:"title" yaml:"title"`
	Source Source `json:"source" yaml:"source"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
}

// NormalizedDocument is the indexable unit built from one PaperRecord. Text
// never exceeds the configured word budget.
type NormalizedDocument struct {
	// ID is unique within one build (e.g. "doc-3").
	ID string `json:"id" yaml:"id"`

	// Text is the flattened "Title / Abstract / Source" block, truncated.
	Text string `json:"text" yaml:"text"`

	Metadata DocumentMetadata `json:"metadata" yaml:"metadata"`
}
