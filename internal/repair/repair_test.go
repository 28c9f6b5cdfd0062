package repair

import (
	"context"
	"testing"

	"cantine/internal/features"
	"cantine/internal/record"
	"cantine/internal/search"
	"cantine/internal/store"
)

// TestCheckConsistencyCleanStore is spec scenario 7: after a normal
// ingest run, repair reports zero orphans and zero missing records.
func TestCheckConsistencyCleanStore(t *testing.T) {
	dir := t.TempDir()

	s, err := store.Create(dir, 1<<20)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	defer s.Close()

	idx, err := search.NewMemOnly()
	if err != nil {
		t.Fatalf("search.NewMemOnly: %v", err)
	}
	defer idx.Close()

	for id := uint64(1); id <= 5; id++ {
		f := features.NewFeatures()
		f.SetUint(features.IdxNumIngredients, uint32(id))
		r := &record.Record{ID: id, Name: "recipe", Features: f}
		for i := range r.UUID {
			r.UUID[i] = byte(id)
		}
		if err := s.Add(r); err != nil {
			t.Fatalf("Add(%d): %v", id, err)
		}
		if err := idx.AddDocument(id, "recipe text", f); err != nil {
			t.Fatalf("AddDocument(%d): %v", id, err)
		}
	}

	report, err := CheckConsistency(context.Background(), s, idx)
	if err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("expected a clean report, got %+v", report)
	}
	if report.TotalInStore != 5 || report.TotalInIndex != 5 {
		t.Fatalf("unexpected totals: %+v", report)
	}
}

// TestCheckConsistencyDetectsOrphan covers a document indexed but
// never committed to the store.
func TestCheckConsistencyDetectsOrphan(t *testing.T) {
	dir := t.TempDir()

	s, err := store.Create(dir, 1<<20)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	defer s.Close()

	idx, err := search.NewMemOnly()
	if err != nil {
		t.Fatalf("search.NewMemOnly: %v", err)
	}
	defer idx.Close()

	f := features.NewFeatures()
	f.SetUint(features.IdxNumIngredients, 1)
	if err := idx.AddDocument(99, "orphan", f); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	report, err := CheckConsistency(context.Background(), s, idx)
	if err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
	if len(report.OrphanIDs) != 1 || report.OrphanIDs[0] != 99 {
		t.Fatalf("OrphanIDs = %v, want [99]", report.OrphanIDs)
	}
}
