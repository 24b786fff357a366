// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Source identifies the external service a paper record was fetched from.
type Source string

const (
	SourceArxiv   Source = "arXiv"
	SourcePubMed  Source = "PubMed"
	SourceScholar Source = "Google Scholar"
)

// Sources lists every supported source in pipeline order.
var Sources = []Source{SourceArxiv, SourcePubMed, SourceScholar}

// Placeholder summaries used when a source does not expose an abstract.
const (
	AbstractNotFound = "Abstract not found"
	NoAbstract       = "No abstract"
)

// PaperRecord is one search hit as returned by a fetcher. Records are
// immutable and are discarded once they have been normalized.
type PaperRecord struct {
	// Title is the paper title as reported by the source.
	Title string `json:"title" yaml:"title"`

	// Summary is the abstract, or a placeholder when none could be found.
	Summary string `json:"summary" yaml:"summary"`

	// Source identifies which fetcher produced this record.
	Source Source `json:"source" yaml:"source"`

	// ID is the source-specific identifier (arXiv ID, PMID), if known.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// URL links to the paper's landing page, if known.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}
