// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-chat/internal/metrics"
	"github.com/pdiddy/research-chat/pkg/types"
)

// vocab gives the fake embedder one dimension per keyword.
var vocab = []string{"sleep", "memory", "spindle", "rem", "diet", "exercise"}

type bagEmbedder struct {
	calls int
	err   error
}

func (e *bagEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, len(vocab))
		for _, w := range strings.Fields(strings.ToLower(text)) {
			w = strings.Trim(w, ".,?!:")
			for j, term := range vocab {
				if w == term {
					v[j]++
				}
			}
		}
		out[i] = v
	}
	return out, nil
}

func testDocs() []types.NormalizedDocument {
	mk := func(id, title, text string, src types.Source) types.NormalizedDocument {
		return types.NormalizedDocument{ID: id, Text: text, Metadata: types.DocumentMetadata{Title: title, Source: src}}
	}
	return []types.NormalizedDocument{
		mk("doc-1", "Spindles", "Title: Spindles Abstract: sleep spindle memory", types.SourceArxiv),
		mk("doc-2", "Diet", "Title: Diet Abstract: diet exercise", types.SourcePubMed),
		mk("doc-3", "REM", "Title: REM Abstract: rem sleep", types.SourceScholar),
		mk("doc-4", "Exercise", "Title: Exercise Abstract: exercise", types.SourcePubMed),
		mk("doc-5", "Memory", "Title: Memory Abstract: memory memory", types.SourceArxiv),
		mk("doc-6", "Other", "Title: Other Abstract: unrelated", types.SourceArxiv),
	}
}

func TestBuildEmpty(t *testing.T) {
	m := metrics.New()
	idx, err := Build(context.Background(), &bagEmbedder{}, nil, Options{Metrics: m})
	assert.Nil(t, idx)
	assert.ErrorIs(t, err, ErrEmpty)

	count, err := testutil.GatherAndCount(m.Registry(), "research_chat_index_builds_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBuildEmbedOnceForAllDocuments(t *testing.T) {
	emb := &bagEmbedder{}
	idx, err := Build(context.Background(), emb, testDocs(), Options{})
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, 6, idx.Len())
	assert.Equal(t, DefaultTopK, idx.TopK())
	assert.Equal(t, "doc-1", idx.Documents()[0].ID)
}

func TestBuildEmbeddingErrorIsFatal(t *testing.T) {
	boom := errors.New("401 unauthorized")
	idx, err := Build(context.Background(), &bagEmbedder{err: boom}, testDocs(), Options{})
	assert.Nil(t, idx)
	assert.ErrorIs(t, err, boom)
}

type shortEmbedder struct{}

func (shortEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}

func TestBuildVectorCountMismatch(t *testing.T) {
	_, err := Build(context.Background(), shortEmbedder{}, testDocs(), Options{})
	assert.Error(t, err)
}

func TestBuildUnknownMode(t *testing.T) {
	_, err := Build(context.Background(), &bagEmbedder{}, testDocs(), Options{Mode: "graph"})
	assert.Error(t, err)
}

func TestRetrieveVector(t *testing.T) {
	idx, err := Build(context.Background(), &bagEmbedder{}, testDocs(), Options{TopK: 2})
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Retrieve(context.Background(), "How do spindles in sleep help memory?")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc-1", hits[0].Document.ID)
	assert.Equal(t, 1, hits[0].Rank)
	assert.Equal(t, 2, hits[1].Rank)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestRetrieveDefaultTopK(t *testing.T) {
	idx, err := Build(context.Background(), &bagEmbedder{}, testDocs(), Options{})
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Retrieve(context.Background(), "sleep")
	require.NoError(t, err)
	assert.Len(t, hits, 4)
}

func TestRetrieveFewerDocumentsThanK(t *testing.T) {
	idx, err := Build(context.Background(), &bagEmbedder{}, testDocs()[:2], Options{TopK: 4})
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Retrieve(context.Background(), "diet")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc-2", hits[0].Document.ID)
}

func TestRetrieveHybrid(t *testing.T) {
	idx, err := Build(context.Background(), &bagEmbedder{}, testDocs(), Options{TopK: 3, Mode: types.RetrievalHybrid})
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Retrieve(context.Background(), "exercise and diet")
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "doc-2", hits[0].Document.ID)

	ids := map[string]bool{}
	for _, h := range hits {
		assert.False(t, ids[h.Document.ID], "duplicate hit %s", h.Document.ID)
		ids[h.Document.ID] = true
	}
	assert.True(t, ids["doc-4"])
}

func TestRetrieveEmptyQuestion(t *testing.T) {
	idx, err := Build(context.Background(), &bagEmbedder{}, testDocs(), Options{})
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Retrieve(context.Background(), "   ")
	assert.Error(t, err)
}

func TestRetrieveAfterClose(t *testing.T) {
	idx, err := Build(context.Background(), &bagEmbedder{}, testDocs(), Options{Mode: types.RetrievalHybrid})
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err = idx.Retrieve(context.Background(), "sleep")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestFuseRRF(t *testing.T) {
	doc := func(id string) types.NormalizedDocument { return types.NormalizedDocument{ID: id} }
	a := []Hit{{Document: doc("x"), Rank: 1}, {Document: doc("y"), Rank: 2}}
	b := []Hit{{Document: doc("y"), Rank: 1}, {Document: doc("z"), Rank: 2}}

	out := fuseRRF(a, b, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "y", out[0].Document.ID)
	assert.Equal(t, "x", out[1].Document.ID)
	assert.InDelta(t, 1.0/62+1.0/61, out[0].Score, 1e-12)
}
