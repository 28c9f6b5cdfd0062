package search

import (
	"context"
	"testing"

	"cantine/internal/features"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewMemOnly()
	if err != nil {
		t.Fatalf("NewMemOnly: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func featuresNumIngredients(n uint32) *features.Features {
	f := features.NewFeatures()
	f.SetUint(features.IdxNumIngredients, n)
	return f
}

// TestPaginationStability is spec scenario 3 / P6: index 100 documents
// across three distinct score buckets, page through with limit=10 by
// threading the cursor, and require every id visited exactly once in
// score-descending, id-ascending order, with the last page's cursor
// nil.
func TestPaginationStability(t *testing.T) {
	idx := newTestIndex(t)

	for id := uint64(1); id <= 100; id++ {
		bucket := uint32(1 + id%3)
		if err := idx.AddDocument(id, "pancakes and eggs", featuresNumIngredients(bucket)); err != nil {
			t.Fatalf("AddDocument(%d): %v", id, err)
		}
	}

	bucketOf := func(id uint64) float64 { return float64(1 + id%3) }

	seen := map[uint64]bool{}
	lastScore := 1 << 30
	var lastID uint64
	cursor := Start
	pages := 0

	for {
		res, err := idx.Search(context.Background(), &SearchRequest{
			Sort:     SortNumIngredients,
			NumItems: 10,
			After:    cursor,
		})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		pages++
		if pages > 20 {
			t.Fatalf("pagination did not terminate")
		}

		for _, id := range res.Items {
			if seen[id] {
				t.Fatalf("id %d returned twice", id)
			}
			seen[id] = true

			score := bucketOf(id)
			if score > float64(lastScore) {
				t.Fatalf("score increased across pagination: %v then %v", lastScore, score)
			}
			if score == float64(lastScore) && id <= lastID {
				t.Fatalf("tie-break not ascending by id: prev=%d cur=%d at equal score %v", lastID, id, score)
			}
			lastScore, lastID = int(score), id
		}

		if res.After == nil {
			break
		}
		cursor = *res.After
	}

	if len(seen) != 100 {
		t.Fatalf("visited %d distinct ids, want 100", len(seen))
	}
}

// TestFilterANDSemantics is spec scenario 8: a filter on Calories AND
// TotalTime excludes a document satisfying only one of the two ranges.
func TestFilterANDSemantics(t *testing.T) {
	idx := newTestIndex(t)

	both := features.NewFeatures()
	both.SetUint(features.IdxCalories, 250)
	both.SetUint(features.IdxTotalTime, 15)

	onlyCalories := features.NewFeatures()
	onlyCalories.SetUint(features.IdxCalories, 250)
	onlyCalories.SetUint(features.IdxTotalTime, 60)

	if err := idx.AddDocument(1, "soup", both); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := idx.AddDocument(2, "stew", onlyCalories); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	res, err := idx.Search(context.Background(), &SearchRequest{
		Sort:     SortRelevance,
		NumItems: 10,
		Filter: FilterRequest{
			{FeatureIndex: features.IdxCalories, Range: Range{Min: 0, Max: 300}},
			{FeatureIndex: features.IdxTotalTime, Range: Range{Min: 0, Max: 20}},
		},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0] != 1 {
		t.Fatalf("Items = %v, want [1]", res.Items)
	}
}
