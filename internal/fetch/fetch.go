// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch queries the external paper sources (arXiv, PubMed, Google
// Scholar) and returns uniform paper records.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/research-chat/internal/logging"
	"github.com/pdiddy/research-chat/internal/metrics"
	"github.com/pdiddy/research-chat/pkg/types"
)

// DefaultLimit is the per-source result count used when none is given.
const DefaultLimit = 3

// ErrEmptyQuery is returned when the topic query has no searchable terms.
var ErrEmptyQuery = errors.New("query is empty")

// Fetcher searches a single external source. Implementations return at most
// limit records, ordered by the source's own ranking, and never retry.
type Fetcher interface {
	Name() string
	Source() types.Source
	Fetch(ctx context.Context, query string, limit int) ([]types.PaperRecord, error)
}

// Aggregator runs a fixed set of fetchers for one topic query.
type Aggregator struct {
	Fetchers []Fetcher
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Fetch runs every fetcher concurrently and returns the concatenation of
// their records in fetcher order. The first failing fetcher, in that same
// order, aborts the whole call and cancels the others. A fetcher that
// returns no records is not an error.
func (a *Aggregator) Fetch(ctx context.Context, query string, limit int) ([]types.PaperRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if len(a.Fetchers) == 0 {
		return nil, fmt.Errorf("no fetchers configured")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	logger := a.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	type slot struct {
		records []types.PaperRecord
		err     error
	}
	slots := make([]slot, len(a.Fetchers))

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i, f := range a.Fetchers {
		wg.Add(1)
		go func(i int, f Fetcher) {
			defer wg.Done()
			start := time.Now()
			records, err := f.Fetch(fetchCtx, query, limit)
			elapsed := time.Since(start)
			if len(records) > limit {
				records = records[:limit]
			}
			a.Metrics.ObserveFetch(string(f.Source()), len(records), elapsed, err)
			if err != nil {
				cancel()
				logger.Error("fetch failed", "fetcher", f.Name(), "error", err)
			} else {
				logger.Debug("fetched", "fetcher", f.Name(), "records", len(records), "elapsed", elapsed)
			}
			slots[i] = slot{records: records, err: err}
		}(i, f)
	}
	wg.Wait()

	errs := make([]error, len(slots))
	for i, s := range slots {
		errs[i] = s.err
	}
	if i := firstFailure(ctx, errs); i >= 0 {
		return nil, fmt.Errorf("%s: %w", a.Fetchers[i].Name(), slots[i].err)
	}
	var all []types.PaperRecord
	for _, s := range slots {
		all = append(all, s.records...)
	}
	return all, nil
}

// firstFailure returns the index of the first error in fetcher order,
// skipping cancellations caused by another fetcher failing. It returns -1
// when every fetcher succeeded.
func firstFailure(parent context.Context, errs []error) int {
	first := -1
	for i, err := range errs {
		if err == nil {
			continue
		}
		if first < 0 {
			first = i
		}
		if parent.Err() != nil || !errors.Is(err, context.Canceled) {
			return i
		}
	}
	return first
}

// FromConfig builds the enabled fetchers in pipeline order (arXiv, PubMed,
// Scholar), sharing one HTTP client.
func FromConfig(cfg types.Config, client *http.Client, logger *slog.Logger) []Fetcher {
	if logger == nil {
		logger = logging.Discard()
	}
	var fetchers []Fetcher
	if cfg.Fetch.EnableArxiv {
		fetchers = append(fetchers, &ArxivFetcher{
			Client:    client,
			UserAgent: cfg.HTTP.UserAgent,
		})
	}
	if cfg.Fetch.EnablePubMed {
		fetchers = append(fetchers, &PubMedFetcher{
			Client:           client,
			UserAgent:        cfg.HTTP.UserAgent,
			BrowserUserAgent: cfg.HTTP.BrowserUserAgent,
			Logger:           logger,
		})
	}
	if cfg.Fetch.EnableScholar {
		fetchers = append(fetchers, &ScholarFetcher{
			Client:           client,
			APIKey:           cfg.Fetch.SerpAPIKey,
			UserAgent:        cfg.HTTP.UserAgent,
			BrowserUserAgent: cfg.HTTP.BrowserUserAgent,
			ScrapePages:      cfg.Fetch.ScrapeScholarPages,
			Logger:           logger,
		})
	}
	return fetchers
}

// collapseSpace joins whitespace runs into single spaces and trims the ends.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
