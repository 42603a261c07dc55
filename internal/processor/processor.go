// Package processor implements the four event processors of spec
// §4.9: process_accepted_block, process_irreversible_block,
// process_accepted_transaction and process_applied_transaction. Each
// renders one or more action_line/source_line bulk pairs and pushes
// them to a bulker pool. Apart from the irreversible-block processor's
// synchronous DocExists checks, none call the search engine directly.
package processor

import (
	"context"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/abicache"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/bulker"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/chainevents"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/config"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/logs"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/model"
)

// BulkPool is the subset of bulker.Pool a processor needs.
type BulkPool interface {
	Get() (*bulker.Bulker, error)
}

// push selects a bulker from pool and appends the rendered pair,
// logging (rather than propagating) an empty-pool error — per spec
// §7, a bad event or a momentarily exhausted resource must never stop
// the consumer loop.
func push(pool BulkPool, logger *logp.Logger, op model.Op, index, id string, source []byte) {
	b, err := pool.Get()
	if err != nil {
		logger.With(logp.Error(err)).Error("no bulker available, dropping document")
		return
	}
	b.Append(model.ActionLine(op, index, id), source)
}

// startBlockReached mirrors spec §6's block_start gate.
func startBlockReached(cfg config.Config, blockNum uint32) bool {
	return blockNum >= cfg.BlockStart
}

func now() int64 {
	return chainevents.Now().UnixMilli()
}

// newLogger is a small indirection so every processor in this package
// shares the same named logger (not rate limited; see logs.New).
func newLogger() *logp.Logger {
	return logs.New(logs.Processor)
}

// Renderer is the subset of abicache.Renderer the processors need,
// named so tests can substitute a stub.
type Renderer interface {
	RenderAction(ctx context.Context, act chainevents.Action) (map[string]interface{}, error)
	RenderTransactionTrace(ctx context.Context, t *chainevents.TransactionTrace) (map[string]interface{}, error)
	RenderTransactionMetadata(ctx context.Context, tx *chainevents.TransactionMetadata) (map[string]interface{}, error)
	RenderBlock(ctx context.Context, b *chainevents.Block) (map[string]interface{}, error)
}

var _ Renderer = (*abicache.Renderer)(nil)

// ABIInvalidator is the subset of abicache.Cache used to drop a
// schema on setabi.
type ABIInvalidator interface {
	Erase(name string)
}

var _ ABIInvalidator = (*abicache.Cache)(nil)
