// Package ingest implements the producer/consumer pipeline that wires
// the search index and RecordStore.Add together: N producer goroutines
// each stage documents into their own index batch without locking and
// commit that batch under the pipeline's write lock, and one consumer
// goroutine appends every record to the record store and periodically
// checkpoints. The consumer does not commit to the index, and a
// producer's commit does not wait for the store append, so a document
// can be visible in the index before its record is in the store.
// Grounded on the teacher's
// transaction.Manager channel-dispatch pattern, reshaped from its
// fan-out-per-request goroutine model into a fixed worker pool.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cantine/internal/config"
	"cantine/internal/logger"
	"cantine/internal/record"
	"cantine/internal/search"
	"cantine/internal/store"
)

type job struct {
	record   *record.Record
	fulltext string
}

// Pipeline owns the shared index/store handles and the channels
// connecting producers to the single consumer.
type Pipeline struct {
	mu sync.RWMutex

	store    *store.RecordStore
	index    *search.Index
	recovery *RecoveryLog
	cfg      config.Config

	jobs chan job
}

// New builds a Pipeline. recovery may be nil to disable crash-recovery
// logging (e.g. for short-lived test or verification runs).
func New(s *store.RecordStore, idx *search.Index, recovery *RecoveryLog, cfg config.Config) *Pipeline {
	return &Pipeline{
		store:    s,
		index:    idx,
		recovery: recovery,
		cfg:      cfg,
		jobs:     make(chan job, cfg.BatchSize*2),
	}
}

// Recover replays any records left pending by a previous run that
// crashed between logging and checkpointing, before new work is
// accepted: each one is appended directly to the store and re-indexed
// with an empty full-text field, bypassing Submit/Run.
func (p *Pipeline) Recover(ctx context.Context) error {
	if p.recovery == nil {
		return nil
	}
	pending, err := p.recovery.Replay()
	if err != nil {
		return fmt.Errorf("ingest: replaying recovery log: %w", err)
	}
	for _, r := range pending {
		if err := p.store.Add(r); err != nil {
			return fmt.Errorf("ingest: replaying record %d: %w", r.ID, err)
		}
		if err := p.index.AddDocument(r.ID, "", r.Features); err != nil {
			logger.Error("recovery re-index failed", "id", r.ID, "err", err)
		}
	}
	if len(pending) > 0 {
		logger.Info("replayed pending records", "count", len(pending))
	}
	return p.recovery.Checkpoint()
}

// Submit enqueues a parsed record. It blocks (providing backpressure)
// if the internal channel is full, and returns ctx.Err() if ctx is
// cancelled first.
func (p *Pipeline) Submit(ctx context.Context, r *record.Record, fulltext string) error {
	if p.recovery != nil {
		if err := p.recovery.LogPending(r); err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	}
	select {
	case p.jobs <- job{record: r, fulltext: fulltext}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no further records will be submitted. Run drains
// the remaining queue and returns once every producer and the
// consumer have finished.
func (p *Pipeline) Close() { close(p.jobs) }

// Run starts cfg.Workers producer goroutines and the single consumer
// goroutine, blocking until Close is called (or ctx is cancelled) and
// every in-flight job has drained.
func (p *Pipeline) Run(ctx context.Context) error {
	toConsumer := make(chan job, cap(p.jobs))

	var producers sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		producers.Add(1)
		go p.produce(ctx, &producers, toConsumer)
	}

	consumerErr := make(chan error, 1)
	go func() { consumerErr <- p.consume(ctx, toConsumer) }()

	producers.Wait()
	close(toConsumer)
	return <-consumerErr
}

// produce owns one bleve batch, stages documents into it, and flushes
// (commits) it under the pipeline's write lock whenever it reaches
// BatchSize or the producer is shutting down. Each job is handed to
// the consumer for durable storage right after it is staged, whether
// or not its batch has been flushed yet.
func (p *Pipeline) produce(ctx context.Context, wg *sync.WaitGroup, out chan<- job) {
	defer wg.Done()

	batch := p.index.NewBatch()
	flush := func() {
		if batch.Len() == 0 {
			return
		}
		p.mu.Lock()
		err := p.index.Commit(batch)
		p.mu.Unlock()
		if err != nil {
			logger.Error("index batch commit failed", "err", err)
		}
	}
	defer flush()

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := batch.Add(j.record.ID, j.fulltext, j.record.Features); err != nil {
				logger.Error("index batch add failed", "id", j.record.ID, "err", err)
				continue
			}
			if batch.Len() >= p.cfg.BatchSize {
				flush()
			}
			select {
			case out <- j:
			case <-ctx.Done():
				return
			}
		}
	}
}

// consume is the pipeline's single writer to the RecordStore: it
// appends every record handed off by a producer and checkpoints the
// recovery log on an interval or batch-size boundary, whichever comes
// first.
func (p *Pipeline) consume(ctx context.Context, in <-chan job) error {
	interval := time.Duration(p.cfg.CommitInterval) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sinceCheckpoint := 0
	checkpoint := func() error {
		if p.cfg.Strict() {
			if err := p.store.Sync(); err != nil {
				return fmt.Errorf("ingest: syncing store: %w", err)
			}
		}
		if p.recovery != nil {
			if err := p.recovery.Checkpoint(); err != nil {
				return fmt.Errorf("ingest: checkpointing recovery log: %w", err)
			}
		}
		sinceCheckpoint = 0
		return nil
	}

	for {
		select {
		case j, ok := <-in:
			if !ok {
				return checkpoint()
			}
			if err := p.store.Add(j.record); err != nil {
				logger.Error("store add failed", "id", j.record.ID, "err", err)
				continue
			}
			sinceCheckpoint++
			if sinceCheckpoint >= p.cfg.BatchSize {
				if err := checkpoint(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if sinceCheckpoint > 0 {
				if err := checkpoint(); err != nil {
					return err
				}
			}
		case <-ctx.Done():
			return checkpoint()
		}
	}
}
