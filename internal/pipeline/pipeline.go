// Package pipeline wires the intake queues, worker pool, event
// processors and bulker pool into the single consumer loop of spec
// §4.7: the one thread that drains whatever the node's event
// callbacks pushed and dispatches each batch to its processor.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/abicache"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/bulker"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/chainevents"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/config"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/esclient"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/filter"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/intake"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/logs"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/model"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/processor"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/workerpool"
)

// slowBatchThreshold is the per-cycle wall-clock bound past which the
// consumer loop logs a warning (spec §4.7).
const slowBatchThreshold = 5 * time.Second

// Pipeline owns the intake queues, worker pool, bulker pool and the
// four event processors, and runs the single consumer goroutine that
// drains the former into the latter.
type Pipeline struct {
	cfg     config.Config
	client  *esclient.Client
	queues  *intake.Queues
	workers *workerpool.Pool
	bulkers *bulker.Pool
	logger  *logp.Logger

	blockProc   *processor.BlockProcessor
	irrevProc   *processor.IrreversibleBlockProcessor
	acceptedTx  *processor.AcceptedTransactionProcessor
	appliedTx   *processor.AppliedTransactionProcessor

	wg   sync.WaitGroup
	done chan struct{}
}

// New builds a Pipeline. keys may be nil (spec §4.9.3's best-effort
// fallback).
func New(cfg config.Config, client *esclient.Client, abiCache *abicache.Cache, renderer *abicache.Renderer, filt *filter.Filter, keys processor.SigningKeysResolver) *Pipeline {
	queues := intake.New(cfg.QueueSize)
	workers := workerpool.New(cfg.ThreadPoolSize)
	bulkers := bulker.NewPool(client, "", cfg.BulkerPoolSize, cfg.BulkSizeBytes())

	return &Pipeline{
		cfg:        cfg,
		client:     client,
		queues:     queues,
		workers:    workers,
		bulkers:    bulkers,
		logger:     logs.New(logs.Pipeline),
		blockProc:  processor.NewBlockProcessor(cfg, bulkers, renderer),
		irrevProc:  processor.NewIrreversibleBlockProcessor(cfg, bulkers, client, renderer),
		acceptedTx: processor.NewAcceptedTransactionProcessor(cfg, bulkers, renderer, keys),
		appliedTx:  processor.NewAppliedTransactionProcessor(cfg, bulkers, renderer, filt, abiCache, cfg.SystemAccount, workers),
		done:       make(chan struct{}),
	}
}

// Bootstrap applies PutMapping for every enabled index (optionally
// preceded by DeleteIndex when index_wipe is set alongside a replay),
// the startup half of spec §6's index_wipe option. mappings supplies
// the opaque per-index mapping body; an index with no entry is
// skipped.
func (p *Pipeline) Bootstrap(ctx context.Context, mappings map[string][]byte) error {
	indices := []struct {
		name    string
		enabled bool
	}{
		{model.IndexBlocks, p.cfg.StoreBlocks},
		{model.IndexBlockStates, p.cfg.StoreBlockStates},
		{model.IndexTransactions, p.cfg.StoreTransactions},
		{model.IndexTransactionTraces, p.cfg.StoreTransactionTraces},
		{model.IndexActionTraces, p.cfg.StoreActionTraces},
		{model.IndexAccounts, true},
	}
	for _, idx := range indices {
		if !idx.enabled {
			continue
		}
		if p.cfg.IndexWipe && p.cfg.ReplayRequested {
			if err := p.client.DeleteIndex(ctx, idx.name); err != nil {
				return err
			}
		}
		mapping, ok := mappings[idx.name]
		if !ok {
			continue
		}
		if err := p.client.PutMapping(ctx, idx.name, mapping); err != nil {
			return err
		}
	}
	return nil
}

// PushTransactionMetadata enqueues an accepted-transaction event.
func (p *Pipeline) PushTransactionMetadata(tx *chainevents.TransactionMetadata) {
	p.queues.PushTransactionMetadata(tx)
}

// PushTransactionTrace enqueues an applied-transaction event.
func (p *Pipeline) PushTransactionTrace(t *chainevents.TransactionTrace) {
	p.queues.PushTransactionTrace(t)
}

// PushBlockState enqueues an accepted-block event.
func (p *Pipeline) PushBlockState(b *chainevents.BlockState) {
	p.queues.PushBlockState(b)
}

// PushIrreversibleBlockState enqueues an irreversible-block event.
func (p *Pipeline) PushIrreversibleBlockState(b *chainevents.BlockState) {
	p.queues.PushIrreversibleBlockState(b)
}

// Start launches the consumer goroutine.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop signals shutdown, waits for the consumer to drain every queue
// and the worker pool, and flushes every bulker's residual buffer
// exactly once (spec §5, testable property S6).
func (p *Pipeline) Stop(ctx context.Context) error {
	p.queues.Signal()
	p.wg.Wait()
	p.workers.Close()
	return p.bulkers.DrainAll(ctx)
}

func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		txTrace, txMeta, blockState, irrBlockState, shutdown := p.queues.Drain()

		start := time.Now()
		for _, item := range txTrace {
			if t, ok := item.(*chainevents.TransactionTrace); ok {
				p.appliedTx.Process(ctx, t)
			}
		}
		for _, item := range txMeta {
			if tx, ok := item.(*chainevents.TransactionMetadata); ok {
				p.acceptedTx.Process(ctx, tx)
			}
		}
		for _, item := range blockState {
			if bs, ok := item.(*chainevents.BlockState); ok {
				p.blockProc.Process(ctx, bs)
			}
		}
		for _, item := range irrBlockState {
			if bs, ok := item.(*chainevents.BlockState); ok {
				p.irrevProc.Process(ctx, bs)
			}
		}
		if elapsed := time.Since(start); elapsed > slowBatchThreshold {
			p.logger.Warnf("slow consumer batch: %s (trace=%d meta=%d block=%d irreversible=%d)",
				elapsed, len(txTrace), len(txMeta), len(blockState), len(irrBlockState))
		}

		if shutdown {
			return
		}
	}
}
