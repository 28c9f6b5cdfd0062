// Package search implements SearchIndex: the full-text and faceted
// search layer built on top of github.com/blevesearch/bleve/v2,
// providing cursor-paginated top-K retrieval across ten sort keys and
// range-bucket feature aggregation.
package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"cantine/internal/features"
)

// Index wraps a bleve.Index configured with BuildMapping, translating
// record adds and query requests into bleve's document and search
// APIs.
type Index struct {
	bleveIndex bleve.Index
}

// New creates a new on-disk index at path.
func New(path string) (*Index, error) {
	idx, err := bleve.New(path, BuildMapping())
	if err != nil {
		return nil, fmt.Errorf("search: creating index: %w", err)
	}
	return &Index{bleveIndex: idx}, nil
}

// NewMemOnly creates an in-memory index, used by tests and by
// short-lived verification tooling.
func NewMemOnly() (*Index, error) {
	idx, err := bleve.NewMemOnly(BuildMapping())
	if err != nil {
		return nil, fmt.Errorf("search: creating in-memory index: %w", err)
	}
	return &Index{bleveIndex: idx}, nil
}

// Open opens an existing on-disk index.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("search: opening index: %w", err)
	}
	return &Index{bleveIndex: idx}, nil
}

// Close releases the underlying bleve index.
func (x *Index) Close() error { return x.bleveIndex.Close() }

func docID(id uint64) string { return strconv.FormatUint(id, 10) }

// buildDocument assembles the bleve document for one record: the
// joined full-text field, the opaque stored feature block the
// aggregation pass re-parses, and one float64 column per sortable
// feature.
func buildDocument(id uint64, fulltext string, f *features.Features) map[string]interface{} {
	doc := map[string]interface{}{
		"id":               id,
		"fulltext":         fulltext,
		"features_bincode": string(f.Bytes()),
	}
	cols := make(map[string]interface{}, features.NumFeatures)
	for i := 0; i < features.NumFeatures; i++ {
		if !isSortable(i) {
			continue
		}
		if v, ok := f.AsFloat64(i); ok {
			cols[features.FeatureNames[i]] = v
		}
	}
	doc["features"] = cols
	return doc
}

// AddDocument indexes a single record outside of any batch. Producer
// goroutines in the ingest pipeline use NewBatch/Batch.Add instead so
// that many records share one commit.
func (x *Index) AddDocument(id uint64, fulltext string, f *features.Features) error {
	return x.bleveIndex.Index(docID(id), buildDocument(id, fulltext, f))
}

// Batch accumulates documents for one commit. Each ingest producer
// goroutine owns its own Batch and adds to it without synchronization;
// only Commit requires exclusive access to the underlying writer.
type Batch struct {
	b *bleve.Batch
}

// NewBatch allocates a batch bound to this index.
func (x *Index) NewBatch() *Batch { return &Batch{b: x.bleveIndex.NewBatch()} }

// Add stages one document into the batch.
func (b *Batch) Add(id uint64, fulltext string, f *features.Features) error {
	return b.b.Index(docID(id), buildDocument(id, fulltext, f))
}

// Len reports how many documents are staged in the batch.
func (b *Batch) Len() int { return b.b.Size() }

// Commit flushes a batch. This is the ingest pipeline's sole
// suspension point requiring exclusive access to the writer (§5).
func (x *Index) Commit(b *Batch) error {
	if err := x.bleveIndex.Batch(b.b); err != nil {
		return fmt.Errorf("search: batch commit: %w", err)
	}
	b.b.Reset()
	return nil
}

// FeatureFilter restricts matches to documents whose feature value at
// FeatureIndex falls inside Range (inclusive); different features in
// the same FilterRequest combine with AND, and a document missing the
// named feature never matches (§8 filter semantics).
type FeatureFilter struct {
	FeatureIndex int
	Range        Range
}

// FilterRequest is the full set of per-feature filters for one query.
type FilterRequest []FeatureFilter

// SearchRequest is one query against the index.
type SearchRequest struct {
	Fulltext string
	Sort     Sort
	NumItems int
	Filter   FilterRequest
	Agg      AggregationRequest
	After    Cursor
}

// SearchResult is the outcome of one query.
type SearchResult struct {
	Items      []uint64
	TotalFound uint64
	After      *Cursor
	Agg        FeatureRanges
}

func buildQuery(req *SearchRequest) query.Query {
	var fulltextQuery query.Query
	if req.Fulltext == "" {
		fulltextQuery = bleve.NewMatchAllQuery()
	} else {
		mq := bleve.NewMatchQuery(req.Fulltext)
		mq.SetField("fulltext")
		fulltextQuery = mq
	}

	if len(req.Filter) == 0 {
		return fulltextQuery
	}

	conjuncts := []query.Query{fulltextQuery}
	for _, flt := range req.Filter {
		if flt.FeatureIndex < 0 || flt.FeatureIndex >= features.NumFeatures {
			continue
		}
		min, max := flt.Range.Min, flt.Range.Max
		inclusive := true
		nq := bleve.NewNumericRangeInclusiveQuery(&min, &max, &inclusive, &inclusive)
		nq.SetField("features." + features.FeatureNames[flt.FeatureIndex])
		conjuncts = append(conjuncts, nq)
	}
	return bleve.NewConjunctionQuery(conjuncts...)
}

// Search runs one query, returning up to NumItems (default 10) ids in
// the order named by Sort, a total hit count, a continuation cursor
// when more results remain, and — if Agg is non-empty — the merged
// range-bucket aggregation over every matching document.
//
// Pagination layers a strict total order ("larger score first, smaller
// id tie-break") on top of bleve's own SearchAfter, which tie-breaks
// on internal document order rather than the documented (score, id)
// pair: this implementation over-fetches one extra hit and applies
// Cursor.Continues as an explicit post-filter, per SPEC_FULL §4.4.
func (x *Index) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := req.NumItems
	if limit <= 0 {
		limit = 10
	}

	q := buildQuery(req)

	breq := bleve.NewSearchRequestOptions(q, limit+1, 0, false)
	breq.Fields = []string{"id"}
	breq.SortBy(req.Sort.sortSpec())
	after, err := req.After.sortAfterValues()
	if err != nil {
		return nil, err
	}
	if after != nil {
		breq.SearchAfter = after
	}

	bres, err := x.bleveIndex.SearchInContext(ctx, breq)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	result := &SearchResult{TotalFound: bres.Total}
	items := make([]uint64, 0, limit)
	var last Cursor

	for i, hit := range bres.Hits {
		cur, err := parseCursor(hit.Sort)
		if err != nil {
			return nil, err
		}
		if !req.After.Continues(cur.ScoreF64(), cur.ID) {
			continue
		}
		if i >= limit {
			c := last
			result.After = &c
			break
		}
		items = append(items, cur.ID)
		last = cur
	}
	result.Items = items

	if len(req.Agg) > 0 {
		agg, err := x.runAggregation(ctx, q, req.Agg)
		if err != nil {
			return nil, err
		}
		result.Agg = agg
	}

	return result, nil
}

// ListIDs returns every indexed document id in ascending order, used
// by repair tooling to enumerate the index's id set directly (via the
// always-present "id" field) rather than through a feature-backed
// Sort, which may be absent on some documents.
func (x *Index) ListIDs(ctx context.Context, pageSize int) ([]uint64, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}

	var ids []uint64
	breq := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), pageSize, 0, false)
	breq.Fields = []string{"id"}
	breq.SortBy([]string{"id"})

	for {
		res, err := x.bleveIndex.SearchInContext(ctx, breq)
		if err != nil {
			return nil, fmt.Errorf("search: listing ids: %w", err)
		}
		if len(res.Hits) == 0 {
			break
		}
		for _, hit := range res.Hits {
			if idVal, ok := hit.Fields["id"].(float64); ok {
				ids = append(ids, uint64(idVal))
			}
		}
		if len(res.Hits) < pageSize {
			break
		}
		breq.SearchAfter = res.Hits[len(res.Hits)-1].Sort
	}
	return ids, nil
}

// aggregationSegmentSize bounds how many matching documents are
// visited per SearchAfter page while computing an aggregation, so that
// collectOne's per-page fruits are merged rather than accumulated over
// one unbounded pass — this keeps the merge path (FeatureRanges.Merge)
// exercised in production the same way it is in the per-segment
// property test, even though bleve v2 does not expose a stable public
// hook for registering a custom low-level search.Collector with its
// query planner.
const aggregationSegmentSize = 500

// runAggregation walks every document matching q in pages, folding
// each page into its own FeatureRanges fruit and merging fruits as
// they complete.
func (x *Index) runAggregation(ctx context.Context, q query.Query, req AggregationRequest) (FeatureRanges, error) {
	total := FeatureRanges{}

	breq := bleve.NewSearchRequestOptions(q, aggregationSegmentSize, 0, false)
	breq.Fields = []string{"features_bincode"}
	breq.SortBy([]string{"id"})

	for {
		bres, err := x.bleveIndex.SearchInContext(ctx, breq)
		if err != nil {
			return nil, fmt.Errorf("search: aggregation: %w", err)
		}

		page := FeatureRanges{}
		for _, hit := range bres.Hits {
			raw, ok := hit.Fields["features_bincode"].(string)
			if !ok {
				continue
			}
			f, err := features.ParseFeatures([]byte(raw))
			if err != nil {
				return nil, fmt.Errorf("search: aggregation: %w", err)
			}
			collectOne(page, req, f)
		}
		if err := total.Merge(page); err != nil {
			return nil, err
		}

		if len(bres.Hits) < aggregationSegmentSize {
			break
		}
		breq.SearchAfter = bres.Hits[len(bres.Hits)-1].Sort
	}

	return total, nil
}
