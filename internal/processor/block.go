package processor

import (
	"context"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/chainevents"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/config"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/model"
)

// BlockProcessor implements process_accepted_block (spec §4.9.1).
type BlockProcessor struct {
	cfg      config.Config
	pool     BulkPool
	renderer Renderer
	logger   *logp.Logger
}

// NewBlockProcessor returns a BlockProcessor pushing to pool, reading
// cfg's store_blocks/store_block_states/block_start gates.
func NewBlockProcessor(cfg config.Config, pool BulkPool, renderer Renderer) *BlockProcessor {
	return &BlockProcessor{cfg: cfg, pool: pool, renderer: renderer, logger: newLogger()}
}

// Process emits up to two scripted-upsert bulk pairs: block_states and
// blocks. Runs only once start_block_reached holds.
func (p *BlockProcessor) Process(ctx context.Context, bs *chainevents.BlockState) {
	if !startBlockReached(p.cfg, bs.BlockNum) {
		return
	}

	ts := now()

	if p.cfg.StoreBlockStates {
		body := model.MustSourceLine(model.AcceptBlockStates(bs.BlockNum, bs.BlockID, bs.Validated, bs.HeaderState, ts))
		push(p.pool, p.logger, model.OpUpdate, model.IndexBlockStates, bs.BlockID, body)
	}

	if p.cfg.StoreBlocks && bs.Block != nil {
		rendered, err := p.renderer.RenderBlock(ctx, bs.Block)
		if err != nil {
			p.logger.With(logp.Error(err)).Warn("render block failed, dropping blocks upsert")
			return
		}
		body := model.MustSourceLine(model.AcceptBlocks(bs.BlockNum, bs.BlockID, rendered, ts))
		push(p.pool, p.logger, model.OpUpdate, model.IndexBlocks, bs.BlockID, body)
	}
}
