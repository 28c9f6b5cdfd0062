package search

import (
	"errors"
	"testing"

	"cantine/internal/features"
	"cantine/internal/storeerr"
)

func featuresWith(a, b, c uint32, hasA, hasB, hasC bool) *features.Features {
	f := features.NewFeatures()
	if hasA {
		f.SetUint(features.IdxNumIngredients, a)
	}
	if hasB {
		f.SetUint(features.IdxInstructionsLength, b)
	}
	if hasC {
		f.SetUint(features.IdxTotalTime, c)
	}
	return f
}

// TestAggregationScenario is spec scenario 4: two documents with
// feature vectors {A=5,B=10} and {A=7,C=2}, request
// [(A,[2..10,0..5]),(B,[9..100,420..710]),(C,[2..2]),(D,[])].
func TestAggregationScenario(t *testing.T) {
	docA := featuresWith(5, 10, 0, true, true, false)
	docB := featuresWith(7, 0, 2, true, false, true)

	req := AggregationRequest{
		{FeatureIndex: features.IdxNumIngredients, Ranges: []Range{{2, 10}, {0, 5}}},
		{FeatureIndex: features.IdxInstructionsLength, Ranges: []Range{{9, 100}, {420, 710}}},
		{FeatureIndex: features.IdxTotalTime, Ranges: []Range{{2, 2}}},
		{FeatureIndex: features.IdxCookTime, Ranges: []Range{}},
	}

	fr := FeatureRanges{}
	collectOne(fr, req, docA)
	collectOne(fr, req, docB)

	wantA := RangeVec{2, 1}
	if got := fr[features.IdxNumIngredients]; !rangeVecEqual(got, wantA) {
		t.Fatalf("A = %v, want %v", got, wantA)
	}
	wantB := RangeVec{1, 0}
	if got := fr[features.IdxInstructionsLength]; !rangeVecEqual(got, wantB) {
		t.Fatalf("B = %v, want %v", got, wantB)
	}
	wantC := RangeVec{1}
	if got := fr[features.IdxTotalTime]; !rangeVecEqual(got, wantC) {
		t.Fatalf("C = %v, want %v", got, wantC)
	}
	if _, ok := fr[features.IdxCookTime]; ok {
		t.Fatalf("D should be absent (no ranges requested), got a bucket")
	}
}

func rangeVecEqual(a, b RangeVec) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestAggregationAbsentFeatureNeverContributes is spec scenario 5 / P8.
func TestAggregationAbsentFeatureNeverContributes(t *testing.T) {
	f := features.NewFeatures()
	req := AggregationRequest{
		{FeatureIndex: features.IdxNumIngredients, Ranges: []Range{{0, 1000}}},
	}
	fr := FeatureRanges{}
	collectOne(fr, req, f)
	if _, ok := fr[features.IdxNumIngredients]; ok {
		t.Fatalf("absent feature must not allocate a bucket")
	}
}

// TestMergeAssociativity is P7: summing per-segment fruits equals
// collecting the whole corpus in one pass.
func TestMergeAssociativity(t *testing.T) {
	docs := []*features.Features{
		featuresWith(1, 0, 0, true, false, false),
		featuresWith(2, 0, 0, true, false, false),
		featuresWith(3, 0, 0, true, false, false),
		featuresWith(4, 0, 0, true, false, false),
	}
	req := AggregationRequest{
		{FeatureIndex: features.IdxNumIngredients, Ranges: []Range{{0, 2}, {3, 10}}},
	}

	whole := FeatureRanges{}
	for _, d := range docs {
		collectOne(whole, req, d)
	}

	segA := FeatureRanges{}
	for _, d := range docs[:2] {
		collectOne(segA, req, d)
	}
	segB := FeatureRanges{}
	for _, d := range docs[2:] {
		collectOne(segB, req, d)
	}
	if err := segA.Merge(segB); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if !rangeVecEqual(whole[features.IdxNumIngredients], segA[features.IdxNumIngredients]) {
		t.Fatalf("merge not associative: whole=%v merged=%v", whole[features.IdxNumIngredients], segA[features.IdxNumIngredients])
	}
}

// TestMergeLengthMismatchRejected is P9.
func TestMergeLengthMismatchRejected(t *testing.T) {
	a := RangeVec{1, 2, 3}
	b := RangeVec{1, 2}
	if err := a.Merge(b); !errors.Is(err, storeerr.ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal", err)
	}
}
