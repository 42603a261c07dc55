package processor

import (
	"context"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/chainevents"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/config"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/model"
)

// DocExistsChecker is the subset of esclient.Client used to decide
// whether an irreversible event has arrived before its accept
// counterpart.
type DocExistsChecker interface {
	DocExists(ctx context.Context, index, id string) (bool, error)
}

// IrreversibleBlockProcessor implements process_irreversible_block
// (spec §4.9.2). Before applying the lightweight validated/
// irreversible/updateAt script, it checks whether the target document
// already exists; if not — the irreversible signal outran the accept
// signal for this block — it backfills the full accept-shaped document
// in the same write instead of leaving a bare script update.
type IrreversibleBlockProcessor struct {
	cfg      config.Config
	pool     BulkPool
	exists   DocExistsChecker
	renderer Renderer
	logger   *logp.Logger
}

// NewIrreversibleBlockProcessor returns an IrreversibleBlockProcessor
// pushing to pool, using exists for the doc_exist backfill check.
func NewIrreversibleBlockProcessor(cfg config.Config, pool BulkPool, exists DocExistsChecker, renderer Renderer) *IrreversibleBlockProcessor {
	return &IrreversibleBlockProcessor{cfg: cfg, pool: pool, exists: exists, renderer: renderer, logger: newLogger()}
}

// Process flips validated/irreversible/updateAt on block_states and
// blocks, backfilling the full accept-shaped document first if it has
// not been written yet, then marks every transaction receipt in the
// block irreversible with its finalizing block linkage.
func (p *IrreversibleBlockProcessor) Process(ctx context.Context, bs *chainevents.BlockState) {
	if !startBlockReached(p.cfg, bs.BlockNum) {
		return
	}

	ts := now()

	if p.cfg.StoreBlockStates {
		p.processBlockStates(ctx, bs, ts)
	}
	if p.cfg.StoreBlocks {
		p.processBlocks(ctx, bs, ts)
	}

	if !p.cfg.StoreTransactions || bs.Block == nil {
		return
	}
	for _, receipt := range bs.Block.Transactions {
		body := model.MustSourceLine(model.TransactionIrreversibleUpdate(bs.BlockID, bs.BlockNum, ts))
		push(p.pool, p.logger, model.OpUpdate, model.IndexTransactions, receipt.ID(), body)
	}
}

func (p *IrreversibleBlockProcessor) processBlockStates(ctx context.Context, bs *chainevents.BlockState, ts int64) {
	exists, err := p.exists.DocExists(ctx, model.IndexBlockStates, bs.BlockID)
	if err != nil {
		p.logger.With(logp.Error(err)).Warn("doc_exist check failed, falling back to script-only update")
		exists = true
	}
	if !exists {
		body := model.MustSourceLine(model.AcceptBlockStates(bs.BlockNum, bs.BlockID, bs.Validated, bs.HeaderState, ts))
		push(p.pool, p.logger, model.OpUpdate, model.IndexBlockStates, bs.BlockID, body)
	}
	body := model.MustSourceLine(model.Irreversible(bs.Validated, ts))
	push(p.pool, p.logger, model.OpUpdate, model.IndexBlockStates, bs.BlockID, body)
}

func (p *IrreversibleBlockProcessor) processBlocks(ctx context.Context, bs *chainevents.BlockState, ts int64) {
	exists, err := p.exists.DocExists(ctx, model.IndexBlocks, bs.BlockID)
	if err != nil {
		p.logger.With(logp.Error(err)).Warn("doc_exist check failed, falling back to script-only update")
		exists = true
	}
	if !exists && bs.Block != nil {
		rendered, err := p.renderer.RenderBlock(ctx, bs.Block)
		if err != nil {
			p.logger.With(logp.Error(err)).Warn("render block failed during irreversible backfill")
		} else {
			body := model.MustSourceLine(model.AcceptBlocks(bs.BlockNum, bs.BlockID, rendered, ts))
			push(p.pool, p.logger, model.OpUpdate, model.IndexBlocks, bs.BlockID, body)
		}
	}
	body := model.MustSourceLine(model.Irreversible(bs.Validated, ts))
	push(p.pool, p.logger, model.OpUpdate, model.IndexBlocks, bs.BlockID, body)
}
