// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/pdiddy/research-chat/internal/httputil"
	"github.com/pdiddy/research-chat/internal/logging"
	"github.com/pdiddy/research-chat/pkg/types"
)

// serpAPIURL is the SerpAPI search endpoint. Declared as a var so tests can
// substitute an httptest server.
var serpAPIURL = "https://serpapi.com/search.json"

// maxPageBytes bounds how much of a result page is read for scraping.
const maxPageBytes = 4 << 20

// noResultsMarker is the SerpAPI error text for an empty result set, which
// is not a failure.
const noResultsMarker = "hasn't returned any results"

// ScholarFetcher queries Google Scholar through SerpAPI and optionally
// scrapes each result page for a fuller abstract.
type ScholarFetcher struct {
	Client           *http.Client
	APIKey           string
	UserAgent        string
	BrowserUserAgent string
	ScrapePages      bool
	Logger           *slog.Logger
}

// Name returns the fetcher identifier.
func (f *ScholarFetcher) Name() string { return "scholar" }

// Source returns the source label attached to every record.
func (f *ScholarFetcher) Source() types.Source { return types.SourceScholar }

// Fetch runs one SerpAPI google_scholar search. SerpAPI failures (bad key,
// quota) are returned; per-result scrape failures fall back to the result's
// own title and snippet.
func (f *ScholarFetcher) Fetch(ctx context.Context, query string, limit int) ([]types.PaperRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	params := url.Values{
		"engine":  {"google_scholar"},
		"q":       {query},
		"api_key": {f.APIKey},
		"num":     {strconv.Itoa(limit)},
	}

	var sr serpResponse
	if err := httputil.GetJSON(ctx, f.Client, serpAPIURL+"?"+params.Encode(), f.UserAgent, &sr); err != nil {
		return nil, fmt.Errorf("SerpAPI request: %w", err)
	}
	if sr.Error != "" && !strings.Contains(sr.Error, noResultsMarker) {
		return nil, fmt.Errorf("SerpAPI: %s", sr.Error)
	}

	results := sr.OrganicResults
	if len(results) > limit {
		results = results[:limit]
	}

	records := make([]types.PaperRecord, 0, len(results))
	for _, r := range results {
		rec, err := f.record(ctx, r)
		if err != nil {
			return nil, err
		}
		if rec.Title == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// record builds a PaperRecord for one organic result.
func (f *ScholarFetcher) record(ctx context.Context, r serpResult) (types.PaperRecord, error) {
	rec := types.PaperRecord{
		Title:  collapseSpace(r.Title),
		Source: types.SourceScholar,
		ID:     r.ResultID,
		URL:    r.Link,
	}
	snippet := collapseSpace(r.Snippet)

	if r.Link == "" {
		rec.Summary = types.NoAbstract
		return rec, nil
	}
	if !f.ScrapePages {
		rec.Summary = orDefault(snippet, types.NoAbstract)
		return rec, nil
	}

	title, abstract, err := f.scrape(ctx, r.Link)
	if err != nil {
		if ctx.Err() != nil {
			return types.PaperRecord{}, ctx.Err()
		}
		f.logger().Warn("scholar page scrape failed", "url", r.Link, "error", err)
		rec.Summary = orDefault(snippet, types.AbstractNotFound)
		return rec, nil
	}

	rec.Title = orDefault(title, rec.Title)
	rec.Summary = orDefault(abstract, orDefault(snippet, types.AbstractNotFound))
	return rec, nil
}

// scrape fetches a result page and extracts its title and abstract. Either
// value may be empty when the page does not expose it.
func (f *ScholarFetcher) scrape(ctx context.Context, link string) (string, string, error) {
	resp, err := httputil.Get(ctx, f.Client, link, f.BrowserUserAgent)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", "", fmt.Errorf("reading page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parsing page: %w", err)
	}

	title := firstNonEmpty(
		doc.Find("h3.gs_rt").First().Text(),
		metaContent(doc, `meta[name="citation_title"]`),
		metaContent(doc, `meta[property="og:title"]`),
	)
	abstract := firstNonEmpty(
		doc.Find("div.gs_rs").First().Text(),
		metaContent(doc, `meta[name="citation_abstract"]`),
		metaContent(doc, `meta[name="dc.description"]`),
		metaContent(doc, `meta[name="description"]`),
		metaContent(doc, `meta[property="og:description"]`),
	)

	if abstract == "" {
		abstract = readableExcerpt(body, resp.Request.URL)
	}
	return title, abstract, nil
}

// readableExcerpt runs the page through go-readability and returns its
// excerpt, or "" when nothing readable is found.
func readableExcerpt(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return ""
	}
	return collapseSpace(article.Excerpt)
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return content
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = collapseSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (f *ScholarFetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return logging.Discard()
	}
	return f.Logger
}

// SerpAPI google_scholar JSON structures.
type serpResponse struct {
	Error          string       `json:"error"`
	OrganicResults []serpResult `json:"organic_results"`
}

type serpResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	ResultID string `json:"result_id"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}
