// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/research-chat/internal/httputil"
	"github.com/pdiddy/research-chat/internal/logging"
	"github.com/pdiddy/research-chat/pkg/types"
)

// PubMed endpoints. Declared as vars so tests can substitute an httptest server.
var (
	pubmedSearchURL   = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pubmedArticleBase = "https://pubmed.ncbi.nlm.nih.gov"
)

// PubMedFetcher searches PubMed for identifiers, then scrapes each article
// page for its abstract.
type PubMedFetcher struct {
	Client           *http.Client
	UserAgent        string
	BrowserUserAgent string
	Logger           *slog.Logger
}

// Name returns the fetcher identifier.
func (f *PubMedFetcher) Name() string { return "pubmed" }

// Source returns the source label attached to every record.
func (f *PubMedFetcher) Source() types.Source { return types.SourcePubMed }

// Fetch runs an E-utilities search and resolves each PMID to a record. A
// failed search is returned as an error; a missing or unreachable abstract
// becomes the "Abstract not found" placeholder.
func (f *PubMedFetcher) Fetch(ctx context.Context, query string, limit int) ([]types.PaperRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	pmids, err := f.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	records := make([]types.PaperRecord, 0, len(pmids))
	for _, pmid := range pmids {
		if len(records) >= limit {
			break
		}
		rec, err := f.article(ctx, pmid)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (f *PubMedFetcher) search(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmode": {"json"},
		"retmax":  {strconv.Itoa(limit)},
	}

	var sr esearchResponse
	if err := httputil.GetJSON(ctx, f.Client, pubmedSearchURL+"?"+params.Encode(), f.UserAgent, &sr); err != nil {
		return nil, fmt.Errorf("PubMed search: %w", err)
	}

	var ids []string
	for _, id := range sr.Result.IDList {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// article scrapes one PubMed page. Only context cancellation is reported as
// an error; everything else degrades to placeholders.
func (f *PubMedFetcher) article(ctx context.Context, pmid string) (types.PaperRecord, error) {
	pageURL := pubmedArticleBase + "/" + pmid + "/"
	rec := types.PaperRecord{
		Title:   "PubMed article " + pmid,
		Summary: types.AbstractNotFound,
		Source:  types.SourcePubMed,
		ID:      pmid,
		URL:     pageURL,
	}

	doc, err := httputil.GetDocument(ctx, f.Client, pageURL, f.BrowserUserAgent)
	if err != nil {
		if ctx.Err() != nil {
			return types.PaperRecord{}, ctx.Err()
		}
		f.logger().Warn("pubmed abstract unavailable", "pmid", pmid, "error", err)
		return rec, nil
	}

	if title := collapseSpace(doc.Find("h1.heading-title").First().Text()); title != "" {
		rec.Title = title
	}
	rec.Summary = pubmedAbstract(doc)
	return rec, nil
}

// pubmedAbstract returns the text of the first div.abstract-content, or the
// placeholder when the element is absent or empty.
func pubmedAbstract(doc *goquery.Document) string {
	sel := doc.Find("div.abstract-content").First()
	if sel.Length() == 0 {
		return types.AbstractNotFound
	}
	text := collapseSpace(sel.Text())
	if text == "" {
		return types.AbstractNotFound
	}
	return text
}

func (f *PubMedFetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return logging.Discard()
	}
	return f.Logger
}

// E-utilities esearch JSON structures.
type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}
