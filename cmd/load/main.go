// Command load reads newline-delimited JSON recipe records from
// stdin and ingests them into a store directory. Lines are parsed on
// the main goroutine; text-indexing is fanned out to worker goroutines
// and store appends are funneled through a single writer goroutine.
// Grounded on original_source's
// bin/load.rs worker pool, reshaped onto the teacher's flag-based
// config and graceful-shutdown idioms from cmd/server/main.go.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"cantine/internal/config"
	"cantine/internal/features"
	"cantine/internal/ingest"
	"cantine/internal/logger"
	"cantine/internal/record"
	"cantine/internal/search"
	"cantine/internal/store"
)

// inputRecord is the newline-delimited JSON schema read from stdin.
type inputRecord struct {
	ID               uint64            `json:"id"`
	UUID             string            `json:"uuid"`
	Name             string            `json:"name"`
	CrawlURL         string            `json:"crawl_url"`
	Ingredients      []string          `json:"ingredients"`
	Instructions     []string          `json:"instructions"`
	Images           []string          `json:"images"`
	SimilarRecipeIDs []uint64          `json:"similar_recipe_ids"`
	Features         map[string]*float64 `json:"features"`
}

func toRecord(in *inputRecord) (*record.Record, error) {
	id, err := uuid.Parse(in.UUID)
	if err != nil {
		return nil, fmt.Errorf("parsing uuid %q: %w", in.UUID, err)
	}

	f := features.NewFeatures()
	for i := 0; i < features.NumFeatures; i++ {
		v, ok := in.Features[features.FeatureNames[i]]
		if !ok || v == nil {
			continue
		}
		if features.IsFloat(i) {
			if err := f.SetFloat(i, float32(*v)); err != nil {
				return nil, fmt.Errorf("feature %s: %w", features.FeatureNames[i], err)
			}
		} else {
			if err := f.SetUint(i, uint32(*v)); err != nil {
				return nil, fmt.Errorf("feature %s: %w", features.FeatureNames[i], err)
			}
		}
	}

	return &record.Record{
		ID:               in.ID,
		UUID:             [16]byte(id),
		Name:             in.Name,
		CrawlURL:         in.CrawlURL,
		Ingredients:      in.Ingredients,
		Instructions:     in.Instructions,
		Images:           in.Images,
		SimilarRecipeIDs: in.SimilarRecipeIDs,
		Features:         f,
	}, nil
}

func fulltextOf(in *inputRecord) string {
	return strings.Join(append([]string{in.Name}, append(in.Ingredients, in.Instructions...)...), "\n")
}

func main() {
	dataDir := flag.String("data-dir", "./data", "store directory (created if absent)")
	indexDir := flag.String("index-dir", "./index", "search index directory (created if absent)")
	initialSize := flag.Int64("initial-size", 1<<30, "data file pre-allocation size in bytes")
	workers := flag.Int("workers", 4, "number of parser/indexer goroutines")
	batchSize := flag.Int("batch-size", 500, "documents per index commit / store checkpoint")
	commitIntervalMS := flag.Int("commit-interval-ms", 1000, "max milliseconds between commits")
	syncMode := flag.String("sync-mode", "async", `"strict" or "async"`)
	quiet := flag.Bool("quiet", false, "disable info logging (log only errors)")
	flag.Parse()

	logger.Setup(os.Stderr)
	if *quiet {
		logger.SetLevel(logger.LevelError)
	}

	cfg := config.Config{
		DataDir:        *dataDir,
		InitialSize:    *initialSize,
		BatchSize:      *batchSize,
		CommitInterval: *commitIntervalMS,
		Workers:        *workers,
		SyncMode:       *syncMode,
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	s, err := openOrCreateStore(cfg)
	if err != nil {
		logger.Fatal("opening record store", "err", err)
	}
	defer s.Close()

	idx, err := openOrCreateIndex(*indexDir)
	if err != nil {
		logger.Fatal("opening search index", "err", err)
	}
	defer idx.Close()

	rec, err := ingest.OpenRecoveryLog(*dataDir + "/recovery.log")
	if err != nil {
		logger.Fatal("opening recovery log", "err", err)
	}
	defer rec.Close()

	pipeline := ingest.New(s, idx, rec, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown requested")
		cancel()
	}()

	if err := pipeline.Recover(ctx); err != nil {
		logger.Fatal("replaying recovery log", "err", err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- pipeline.Run(ctx) }()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var loaded, failed int
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var in inputRecord
		if err := json.Unmarshal(line, &in); err != nil {
			logger.Error("parse failure", "err", err)
			failed++
			continue
		}
		r, err := toRecord(&in)
		if err != nil {
			logger.Error("record conversion failure", "err", err)
			failed++
			continue
		}
		if err := pipeline.Submit(ctx, r, fulltextOf(&in)); err != nil {
			logger.Error("submit failure", "id", r.ID, "err", err)
			failed++
			continue
		}
		loaded++
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		logger.Error("reading stdin", "err", err)
	}

	pipeline.Close()
	if err := <-runDone; err != nil {
		logger.Fatal("pipeline run failed", "err", err)
	}

	logger.Info("load complete", "loaded", loaded, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func openOrCreateStore(cfg config.Config) (*store.RecordStore, error) {
	if _, err := os.Stat(cfg.DataDir + "/data.bin"); os.IsNotExist(err) {
		return store.Create(cfg.DataDir, cfg.InitialSize)
	}
	return store.Open(cfg.DataDir)
}

func openOrCreateIndex(path string) (*search.Index, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return search.New(path)
	}
	return search.Open(path)
}
