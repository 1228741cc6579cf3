// Package retrieve implements hybrid retrieval over report chunks:
// vector similarity and keyword relevance ranked independently, fused
// with Reciprocal Rank Fusion.
package retrieve

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/finsight-ai/finsight/internal/core"
	"github.com/finsight-ai/finsight/internal/models"
)

// Options tunes hybrid fusion. Zero values fall back to the defaults
// the reference configuration uses.
type Options struct {
	SemanticTopN int // candidates from the vector branch (default 40)
	BM25TopN     int // candidates from the keyword branch (default 40)
	RRFK         int // rank damping constant (default 60)
}

func (o Options) withDefaults() Options {
	if o.SemanticTopN <= 0 {
		o.SemanticTopN = 40
	}
	if o.BM25TopN <= 0 {
		o.BM25TopN = 40
	}
	if o.RRFK <= 0 {
		o.RRFK = 60
	}
	return o
}

// Retriever answers chunk searches against the relational store. It
// is stateless; every call issues read-only queries.
type Retriever struct {
	db core.DbClient
}

func NewRetriever(db core.DbClient) *Retriever {
	return &Retriever{db: db}
}

// SearchSemantic returns up to limit chunks ordered by ascending
// vector distance to the query embedding.
func (r *Retriever) SearchSemantic(ctx context.Context, embedding []float32, limit int, filter core.SearchFilter) ([]models.ReportChunk, error) {
	return r.db.SearchSemantic(ctx, embedding, limit, filter)
}

// SearchBM25 returns up to limit chunks ordered by descending
// full-text relevance to the query string.
func (r *Retriever) SearchBM25(ctx context.Context, query string, limit int, filter core.SearchFilter) ([]models.ReportChunk, error) {
	return r.db.SearchBM25(ctx, query, limit, filter)
}

// SearchHybrid runs the semantic and keyword retrievals independently
// and fuses them with RRF. The two branches have no ordering
// requirement between them and run concurrently; either failure fails
// the call.
func (r *Retriever) SearchHybrid(ctx context.Context, embedding []float32, query string, limit int, filter core.SearchFilter, opts Options) ([]models.ReportChunk, error) {
	opts = opts.withDefaults()

	var semanticHits, bm25Hits []models.ReportChunk

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semanticHits, err = r.db.SearchSemantic(gctx, embedding, opts.SemanticTopN, filter)
		return err
	})
	g.Go(func() error {
		var err error
		bm25Hits, err = r.db.SearchBM25(gctx, query, opts.BM25TopN, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return rrfFuse([][]models.ReportChunk{semanticHits, bm25Hits}, limit, opts.RRFK), nil
}

// rrfFuse combines ranked lists into one ordering: each chunk scores
// the sum of 1/(k + rank) over the lists it appears in, rank starting
// at 1. A chunk absent from a list contributes nothing for it. Equal
// scores break deterministically on doc_id ascending.
func rrfFuse(rankedLists [][]models.ReportChunk, limit, k int) []models.ReportChunk {
	scores := make(map[string]float64)
	byID := make(map[string]models.ReportChunk)

	for _, ranked := range rankedLists {
		for rank, chunk := range ranked {
			scores[chunk.DocID] += 1.0 / float64(k+rank+1)
			if _, seen := byID[chunk.DocID]; !seen {
				byID[chunk.DocID] = chunk
			}
		}
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		if scores[ids[a]] != scores[ids[b]] {
			return scores[ids[a]] > scores[ids[b]]
		}
		return ids[a] < ids[b]
	})

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	fused := make([]models.ReportChunk, len(ids))
	for i, id := range ids {
		fused[i] = byID[id]
	}
	return fused
}
