package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"cantine/internal/config"
	"cantine/internal/features"
	"cantine/internal/record"
	"cantine/internal/search"
	"cantine/internal/store"
)

func TestPipelineSubmitAndRun(t *testing.T) {
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

	rec, err := OpenRecoveryLog(filepath.Join(dir, "recovery.log"))
	if err != nil {
		t.Fatalf("OpenRecoveryLog: %v", err)
	}
	defer rec.Close()

	cfg := config.Default()
	cfg.Workers = 2
	cfg.BatchSize = 3
	cfg.CommitInterval = 50

	p := New(s, idx, rec, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- p.Run(ctx) }()

	for id := uint64(1); id <= 10; id++ {
		f := features.NewFeatures()
		f.SetUint(features.IdxNumIngredients, uint32(id))
		r := &record.Record{ID: id, Name: "recipe", Features: f}
		for i := range r.UUID {
			r.UUID[i] = byte(id)
		}
		if err := p.Submit(ctx, r, "recipe text"); err != nil {
			t.Fatalf("Submit(%d): %v", id, err)
		}
	}
	p.Close()

	if err := <-runDone; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := s.Len(); got != 10 {
		t.Fatalf("store has %d records, want 10", got)
	}

	res, err := idx.Search(context.Background(), &search.SearchRequest{
		Sort:     search.SortNumIngredients,
		NumItems: 20,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Items) != 10 {
		t.Fatalf("indexed %d documents, want 10", len(res.Items))
	}
}
