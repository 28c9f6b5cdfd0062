// Package repair implements consistency checks between the record
// store and the search index, plus optional content-hash verification
// of stored records. Adapted from the teacher's RepairManager
// (CheckConsistency/RepairOrphans/VerifyIntegrity comparing an HNSW
// index against a DocMap) to compare RecordStore ids against
// SearchIndex ids instead.
package repair

import (
	"context"
	"fmt"

	"github.com/zeebo/blake3"

	"cantine/internal/bitset"
	"cantine/internal/record"
	"cantine/internal/search"
	"cantine/internal/store"
)

// Report is the result of one consistency pass, mirroring the
// teacher's RepairReport shape with HNSW/DocMap renamed to
// index/store.
type Report struct {
	TotalInStore    int
	TotalInIndex    int
	OrphanIDs       []uint64 // present in the index, absent from the store
	MissingIDs      []uint64 // present in the store, absent from the index
	HashMismatchIDs []uint64 // present in both, content hash disagrees (only set if VerifyHashes is requested)
}

// Clean reports whether the store and index agree with no drift.
func (r *Report) Clean() bool {
	return len(r.OrphanIDs) == 0 && len(r.MissingIDs) == 0 && len(r.HashMismatchIDs) == 0
}

// CheckConsistency walks every id reachable from the record store and
// cross-checks it against the search index (and vice versa), using a
// bitset.BitSet difference rather than the teacher's nested map scan
// since both sides here key uniformly by uint64.
func CheckConsistency(ctx context.Context, s *store.RecordStore, idx *search.Index) (*Report, error) {
	storeIDs, err := allStoreIDs(s)
	if err != nil {
		return nil, err
	}
	indexIDs, err := allIndexIDs(ctx, idx)
	if err != nil {
		return nil, err
	}

	storeSet := bitset.FromSlice(storeIDs)
	indexSet := bitset.FromSlice(indexIDs)

	return &Report{
		TotalInStore: storeSet.Count(),
		TotalInIndex: indexSet.Count(),
		OrphanIDs:    indexSet.Difference(storeSet).ToSlice(),
		MissingIDs:   storeSet.Difference(indexSet).ToSlice(),
	}, nil
}

// VerifyHashes extends a Report with blake3 content-hash verification:
// for every id in expected that the store still holds, re-derives the
// record's digest and flags a mismatch, extending the teacher's
// blake3-based bucket hashing (internal/storage.Manager.getBucketID)
// into a full per-record integrity check.
func VerifyHashes(report *Report, s *store.RecordStore, expected map[uint64][32]byte) error {
	for id, want := range expected {
		r, ok, err := s.GetByID(id)
		if err != nil {
			return fmt.Errorf("repair: GetByID(%d): %w", id, err)
		}
		if !ok {
			continue // already reported as MissingIDs/OrphanIDs
		}
		got := ContentHash(r)
		if got != want {
			report.HashMismatchIDs = append(report.HashMismatchIDs, id)
		}
	}
	return nil
}

// ContentHash returns the blake3 digest of a record's serialized
// payload, used as the content-addressing check referenced in the
// store's design. Grounded on the teacher's Manager.getBucketID
// hashing (blake3.New/Write/Sum), extended from a 4-byte partition
// key to a full 32-byte digest.
func ContentHash(r *record.Record) [32]byte {
	encoded, err := record.Serialize(r)
	if err != nil {
		// Serialize only fails on an encoding bug, not bad input; a
		// record retrieved from the store has already round-tripped
		// once, so this path means the in-memory record was mutated
		// into an unencodable state.
		return [32]byte{}
	}
	h := blake3.New()
	h.Write(encoded)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func allStoreIDs(s *store.RecordStore) ([]uint64, error) {
	ids := make([]uint64, 0, s.Len())
	err := s.ForEachID(func(id uint64) { ids = append(ids, id) })
	return ids, err
}

func allIndexIDs(ctx context.Context, idx *search.Index) ([]uint64, error) {
	ids, err := idx.ListIDs(ctx, 1000)
	if err != nil {
		return nil, fmt.Errorf("repair: %w", err)
	}
	return ids, nil
}
