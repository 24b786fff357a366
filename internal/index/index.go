// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index builds the per-topic retrieval index: document embeddings
// held in an in-memory SQLite table, plus an optional bleve lexical index
// for hybrid retrieval.
package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-chat/internal/metrics"
	"github.com/pdiddy/research-chat/pkg/types"
)

// DefaultTopK is the number of documents returned per question.
const DefaultTopK = 4

// rrfK is the reciprocal-rank-fusion constant used in hybrid mode.
const rrfK = 60

var (
	// ErrEmpty is returned by Build when there are no documents to index.
	ErrEmpty = errors.New("no documents to index")

	// ErrClosed is returned by Retrieve after Close.
	ErrClosed = errors.New("index is closed")

	errEmptyQuestion = errors.New("question is empty")
)

// Embedder turns texts into vectors, one per text and in the same order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options controls retrieval.
type Options struct {
	// TopK is the number of hits returned (default 4).
	TopK int

	// Mode is types.RetrievalVector (default) or types.RetrievalHybrid.
	Mode string

	Metrics *metrics.Metrics
}

// Hit is one retrieved document.
type Hit struct {
	Document types.NormalizedDocument
	Score    float64
	Rank     int
}

// Index is a read-only retrieval index over one topic's documents. It is
// safe for concurrent use.
type Index struct {
	embedder Embedder
	topK     int
	mode     string

	mu      sync.Mutex
	db      *sql.DB
	lexical bleve.Index
	docs    map[string]types.NormalizedDocument
	order   []string
	closed  bool
}

// lexicalDoc is the shape indexed by bleve.
type lexicalDoc struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Build embeds every document in one batched call and loads the vectors
// into a fresh index. Any embedding or storage failure aborts the build;
// no partial index is returned.
func Build(ctx context.Context, embedder Embedder, docs []types.NormalizedDocument, opts Options) (*Index, error) {
	idx, err := build(ctx, embedder, docs, opts)
	opts.Metrics.ObserveIndexBuild(len(docs), err)
	return idx, err
}

func build(ctx context.Context, embedder Embedder, docs []types.NormalizedDocument, opts Options) (*Index, error) {
	if len(docs) == 0 {
		return nil, ErrEmpty
	}
	if embedder == nil {
		return nil, errors.New("no embedder configured")
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedding documents: got %d vectors for %d documents", len(vectors), len(docs))
	}

	idx := &Index{
		embedder: embedder,
		topK:     opts.TopK,
		mode:     opts.Mode,
		docs:     make(map[string]types.NormalizedDocument, len(docs)),
	}
	if idx.topK <= 0 {
		idx.topK = DefaultTopK
	}
	if idx.mode == "" {
		idx.mode = types.RetrievalVector
	}
	if idx.mode != types.RetrievalVector && idx.mode != types.RetrievalHybrid {
		return nil, fmt.Errorf("unknown retrieval mode %q", idx.mode)
	}

	if err := idx.openStore(ctx, docs, vectors); err != nil {
		idx.Close()
		return nil, err
	}
	if idx.mode == types.RetrievalHybrid {
		if err := idx.openLexical(docs); err != nil {
			idx.Close()
			return nil, err
		}
	}
	return idx, nil
}

func (idx *Index) openStore(ctx context.Context, docs []types.NormalizedDocument, vectors [][]float32) error {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return fmt.Errorf("opening index database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	idx.db = db

	if _, err := db.ExecContext(ctx, `CREATE TABLE documents (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		title TEXT,
		source TEXT,
		url TEXT,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (position, id, title, source, url, text, embedding) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, d := range docs {
		if _, exists := idx.docs[d.ID]; exists {
			tx.Rollback()
			return fmt.Errorf("duplicate document id %q", d.ID)
		}
		if _, err := stmt.ExecContext(ctx, i, d.ID, d.Metadata.Title, string(d.Metadata.Source),
			d.Metadata.URL, d.Text, encodeVector(vectors[i])); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting document %s: %w", d.ID, err)
		}
		idx.docs[d.ID] = d
		idx.order = append(idx.order, d.ID)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing documents: %w", err)
	}
	return nil
}

func (idx *Index) openLexical(docs []types.NormalizedDocument) error {
	lex, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("creating lexical index: %w", err)
	}
	idx.lexical = lex

	batch := lex.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID, lexicalDoc{
			Title:  d.Metadata.Title,
			Text:   d.Text,
			Source: string(d.Metadata.Source),
		}); err != nil {
			return fmt.Errorf("indexing %s: %w", d.ID, err)
		}
	}
	if err := lex.Batch(batch); err != nil {
		return fmt.Errorf("indexing documents: %w", err)
	}
	return nil
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int { return len(idx.order) }

// TopK returns the configured hit count.
func (idx *Index) TopK() int { return idx.topK }

// Documents returns the indexed documents in build order.
func (idx *Index) Documents() []types.NormalizedDocument {
	out := make([]types.NormalizedDocument, len(idx.order))
	for i, id := range idx.order {
		out[i] = idx.docs[id]
	}
	return out
}

// Retrieve returns up to TopK documents most relevant to question, best
// first.
func (idx *Index) Retrieve(ctx context.Context, question string) ([]Hit, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errEmptyQuestion
	}

	vecs, err := idx.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding question: got %d vectors", len(vecs))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil, ErrClosed
	}

	if idx.mode != types.RetrievalHybrid {
		return idx.vectorSearch(ctx, vecs[0], idx.topK)
	}

	// Each leg contributes a deeper candidate list before fusion.
	depth := idx.topK * 3
	dense, err := idx.vectorSearch(ctx, vecs[0], depth)
	if err != nil {
		return nil, err
	}
	sparse, err := idx.lexicalSearch(question, depth)
	if err != nil {
		return nil, err
	}
	return fuseRRF(dense, sparse, idx.topK), nil
}

// vectorSearch ranks every stored document by cosine similarity. Ties keep
// build order.
func (idx *Index) vectorSearch(ctx context.Context, q []float32, k int) ([]Hit, error) {
	rows, err := idx.db.QueryContext(ctx, `SELECT id, embedding FROM documents ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		hits = append(hits, Hit{Document: idx.docs[id], Score: cosine(q, decodeVector(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}

func (idx *Index) lexicalSearch(question string, k int) ([]Hit, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(question), k, 0, false)
	res, err := idx.lexical.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for i, h := range res.Hits {
		doc, ok := idx.docs[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Document: doc, Score: h.Score, Rank: i + 1})
	}
	return hits, nil
}

// fuseRRF merges two rankings by reciprocal rank fusion and returns the top
// k. Documents ranked equally keep the order of their first appearance.
func fuseRRF(a, b []Hit, k int) []Hit {
	type agg struct {
		hit   Hit
		score float64
		first int
	}
	m := map[string]*agg{}
	seen := 0
	add := func(list []Hit) {
		for _, h := range list {
			x, ok := m[h.Document.ID]
			if !ok {
				x = &agg{hit: h, first: seen}
				m[h.Document.ID] = x
				seen++
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)

	items := make([]*agg, 0, len(m))
	for _, v := range m {
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].first < items[j].first
	})

	n := min(k, len(items))
	out := make([]Hit, n)
	for i := 0; i < n; i++ {
		out[i] = items[i].hit
		out[i].Score = items[i].score
		out[i].Rank = i + 1
	}
	return out
}

// Close releases the database and lexical index. It is safe to call more
// than once.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true

	var errs []error
	if idx.lexical != nil {
		errs = append(errs, idx.lexical.Close())
	}
	if idx.db != nil {
		errs = append(errs, idx.db.Close())
	}
	return errors.Join(errs...)
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
