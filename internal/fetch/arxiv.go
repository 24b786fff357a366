// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/research-chat/internal/httputil"
	"github.com/pdiddy/research-chat/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivFetcher queries the arXiv API, newest submissions first.
type ArxivFetcher struct {
	Client    *http.Client
	UserAgent string
}

// Name returns the fetcher identifier.
func (f *ArxivFetcher) Name() string { return "arxiv" }

// Source returns the source label attached to every record.
func (f *ArxivFetcher) Source() types.Source { return types.SourceArxiv }

// Fetch queries arXiv sorted by submission date. Network, HTTP, and parse
// errors are returned unchanged in meaning.
func (f *ArxivFetcher) Fetch(ctx context.Context, query string, limit int) ([]types.PaperRecord, error) {
	q := buildArxivQuery(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	params := url.Values{
		"search_query": {q},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(limit)},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
	}

	resp, err := httputil.Get(ctx, f.Client, arxivAPIBase+"?"+params.Encode(), f.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var records []types.PaperRecord
	for _, entry := range feed.Entries {
		if len(records) >= limit {
			break
		}
		id := extractArxivID(entry.ID)
		title := collapseSpace(entry.Title)
		if title == "" {
			if id == "" {
				continue
			}
			title = "arXiv preprint " + id
		}
		records = append(records, types.PaperRecord{
			Title:   title,
			Summary: collapseSpace(entry.Summary),
			Source:  types.SourceArxiv,
			ID:      id,
			URL:     strings.TrimSpace(entry.ID),
		})
	}
	return records, nil
}

// buildArxivQuery turns free text into an all-fields conjunction
// (e.g. "sleep memory" → "all:sleep AND all:memory").
func buildArxivQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	for i, t := range terms {
		terms[i] = "all:" + t
	}
	return strings.Join(terms, " AND ")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := strings.TrimSpace(idURL[idx+len(prefix):])

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
