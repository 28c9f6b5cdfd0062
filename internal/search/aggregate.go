package search

import (
	"fmt"

	"cantine/internal/features"
	"cantine/internal/storeerr"
)

// Range is an inclusive numeric bucket boundary used by aggregation
// requests.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v falls inside the inclusive range.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// RangeVec is the hit count per requested range for a single feature,
// in request order. Ported from tique's RangeVec.
type RangeVec []uint64

// Merge adds other into rv element-wise. Both vectors must have come
// from the same request and therefore have equal length; a mismatch
// is an invariant violation, not a data error.
func (rv RangeVec) Merge(other RangeVec) error {
	if len(rv) != len(other) {
		return fmt.Errorf("%w: range vector length mismatch: %d vs %d", storeerr.ErrInternal, len(rv), len(other))
	}
	for i := range rv {
		rv[i] += other[i]
	}
	return nil
}

// FeatureRanges is the sparse per-feature aggregation fruit: a feature
// slot is present in the map only once at least one matching document
// has hit at least one of its requested ranges (lazy allocation, see
// P7/P8). Ported from tique's FeatureRanges.
type FeatureRanges map[int]RangeVec

// Merge combines other into fr in place, per slot: absent+absent stays
// absent, one side present copies across, both present adds
// element-wise.
func (fr FeatureRanges) Merge(other FeatureRanges) error {
	for idx, rv := range other {
		existing, ok := fr[idx]
		if !ok {
			cp := make(RangeVec, len(rv))
			copy(cp, rv)
			fr[idx] = cp
			continue
		}
		if err := existing.Merge(rv); err != nil {
			return err
		}
	}
	return nil
}

// FeatureRequest names one feature and the ranges to bucket it into.
type FeatureRequest struct {
	FeatureIndex int
	Ranges       []Range
}

// AggregationRequest is the sparse request driving one collection
// pass: a list of (feature, ranges) tuples. The result is keyed by
// feature index, and each RangeVec keeps the order of its ranges.
type AggregationRequest []FeatureRequest

// collectOne folds a single document's feature vector into fr
// in place, allocating a feature's RangeVec lazily on its first hit.
// Absent or out-of-range feature indices are skipped, matching P8.
func collectOne(fr FeatureRanges, req AggregationRequest, f *features.Features) {
	for _, fq := range req {
		if fq.FeatureIndex < 0 || fq.FeatureIndex >= features.NumFeatures {
			continue
		}
		val, ok := f.AsFloat64(fq.FeatureIndex)
		if !ok {
			continue
		}
		for i, rng := range fq.Ranges {
			if !rng.Contains(val) {
				continue
			}
			rv, ok := fr[fq.FeatureIndex]
			if !ok {
				rv = make(RangeVec, len(fq.Ranges))
				fr[fq.FeatureIndex] = rv
			}
			rv[i]++
		}
	}
}
