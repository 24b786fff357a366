// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-chat/internal/metrics"
	"github.com/pdiddy/research-chat/pkg/types"
)

type fakeFetcher struct {
	name    string
	source  types.Source
	records []types.PaperRecord
	err     error
	delay   time.Duration
	calls   atomic.Int32
	gotQ    string
	gotN    int
}

func (f *fakeFetcher) Name() string         { return f.name }
func (f *fakeFetcher) Source() types.Source { return f.source }

func (f *fakeFetcher) Fetch(ctx context.Context, query string, limit int) ([]types.PaperRecord, error) {
	f.calls.Add(1)
	f.gotQ, f.gotN = query, limit
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.records, f.err
}

func recs(src types.Source, titles ...string) []types.PaperRecord {
	out := make([]types.PaperRecord, len(titles))
	for i, title := range titles {
		out[i] = types.PaperRecord{Title: title, Summary: "s", Source: src}
	}
	return out
}

func TestAggregatorPreservesSourceOrder(t *testing.T) {
	// The first fetcher finishes last; output order must still follow
	// fetcher order.
	arxiv := &fakeFetcher{name: "arxiv", source: types.SourceArxiv, records: recs(types.SourceArxiv, "a1", "a2"), delay: 30 * time.Millisecond}
	pubmed := &fakeFetcher{name: "pubmed", source: types.SourcePubMed, records: recs(types.SourcePubMed, "p1")}
	scholar := &fakeFetcher{name: "scholar", source: types.SourceScholar, records: recs(types.SourceScholar, "s1", "s2")}

	agg := &Aggregator{Fetchers: []Fetcher{arxiv, pubmed, scholar}}
	got, err := agg.Fetch(context.Background(), "  sleep memory ", 3)
	require.NoError(t, err)

	var titles []string
	for _, r := range got {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"a1", "a2", "p1", "s1", "s2"}, titles)
	assert.Equal(t, "sleep memory", arxiv.gotQ)
	assert.Equal(t, 3, scholar.gotN)
}

func TestAggregatorZeroRecordSourceIsNotAnError(t *testing.T) {
	agg := &Aggregator{Fetchers: []Fetcher{
		&fakeFetcher{name: "arxiv", source: types.SourceArxiv},
		&fakeFetcher{name: "pubmed", source: types.SourcePubMed, records: recs(types.SourcePubMed, "p1")},
	}}
	got, err := agg.Fetch(context.Background(), "sleep", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].Title)
}

func TestAggregatorFirstErrorAborts(t *testing.T) {
	errPub := errors.New("pubmed down")
	errSch := errors.New("serpapi quota")
	scholar := &fakeFetcher{name: "scholar", source: types.SourceScholar, err: errSch}
	agg := &Aggregator{Fetchers: []Fetcher{
		&fakeFetcher{name: "arxiv", source: types.SourceArxiv, records: recs(types.SourceArxiv, "a1")},
		&fakeFetcher{name: "pubmed", source: types.SourcePubMed, err: errPub},
		scholar,
	}}

	got, err := agg.Fetch(context.Background(), "sleep", 3)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, errPub)
	assert.Contains(t, err.Error(), "pubmed")
}

func TestAggregatorTruncatesToLimit(t *testing.T) {
	agg := &Aggregator{Fetchers: []Fetcher{
		&fakeFetcher{name: "arxiv", source: types.SourceArxiv, records: recs(types.SourceArxiv, "1", "2", "3", "4", "5")},
	}}
	got, err := agg.Fetch(context.Background(), "sleep", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestAggregatorDefaultLimit(t *testing.T) {
	f := &fakeFetcher{name: "arxiv", source: types.SourceArxiv}
	agg := &Aggregator{Fetchers: []Fetcher{f}}
	_, err := agg.Fetch(context.Background(), "sleep", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, f.gotN)
}

func TestAggregatorEmptyQuery(t *testing.T) {
	f := &fakeFetcher{name: "arxiv", source: types.SourceArxiv}
	agg := &Aggregator{Fetchers: []Fetcher{f}}
	_, err := agg.Fetch(context.Background(), " \t ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Zero(t, f.calls.Load())
}

func TestAggregatorNoFetchers(t *testing.T) {
	agg := &Aggregator{}
	_, err := agg.Fetch(context.Background(), "sleep", 3)
	assert.Error(t, err)
}

func TestAggregatorRecordsMetrics(t *testing.T) {
	m := metrics.New()
	agg := &Aggregator{
		Metrics: m,
		Fetchers: []Fetcher{
			&fakeFetcher{name: "arxiv", source: types.SourceArxiv, records: recs(types.SourceArxiv, "a1", "a2")},
		},
	}
	_, err := agg.Fetch(context.Background(), "sleep", 3)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(m.Registry(), "research_chat_fetch_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFromConfig(t *testing.T) {
	cfg := types.DefaultConfig()
	fetchers := FromConfig(cfg, nil, nil)
	require.Len(t, fetchers, 3)
	assert.Equal(t, types.SourceArxiv, fetchers[0].Source())
	assert.Equal(t, types.SourcePubMed, fetchers[1].Source())
	assert.Equal(t, types.SourceScholar, fetchers[2].Source())

	cfg.Fetch.EnablePubMed = false
	cfg.Fetch.EnableScholar = false
	fetchers = FromConfig(cfg, nil, nil)
	require.Len(t, fetchers, 1)
	assert.Equal(t, "arxiv", fetchers[0].Name())
}

// slowFetcher blocks until its context ends or wait elapses.
type slowFetcher struct {
	name      string
	source    types.Source
	wait      time.Duration
	cancelled atomic.Bool
}

func (f *slowFetcher) Name() string         { return f.name }
func (f *slowFetcher) Source() types.Source { return f.source }

func (f *slowFetcher) Fetch(ctx context.Context, _ string, _ int) ([]types.PaperRecord, error) {
	select {
	case <-ctx.Done():
		f.cancelled.Store(true)
		return nil, ctx.Err()
	case <-time.After(f.wait):
		return recs(f.source, "late"), nil
	}
}

func TestAggregatorFailureCancelsOthers(t *testing.T) {
	errPub := errors.New("esearch down")
	arxiv := &slowFetcher{name: "arxiv", source: types.SourceArxiv, wait: 10 * time.Second}
	pubmed := &fakeFetcher{name: "pubmed", source: types.SourcePubMed, err: errPub}
	scholar := &slowFetcher{name: "scholar", source: types.SourceScholar, wait: 10 * time.Second}

	agg := &Aggregator{Fetchers: []Fetcher{arxiv, pubmed, scholar}}
	start := time.Now()
	_, err := agg.Fetch(context.Background(), "sleep", 3)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	// arXiv comes first in order but only failed because pubmed did.
	assert.ErrorIs(t, err, errPub)
	assert.Contains(t, err.Error(), "pubmed")
	assert.True(t, arxiv.cancelled.Load())
	assert.True(t, scholar.cancelled.Load())
}

func TestAggregatorCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := &Aggregator{Fetchers: []Fetcher{
		&slowFetcher{name: "arxiv", source: types.SourceArxiv, wait: 10 * time.Second},
		&slowFetcher{name: "pubmed", source: types.SourcePubMed, wait: 10 * time.Second},
	}}
	_, err := agg.Fetch(ctx, "sleep", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "arxiv")
}
