package processor

import (
	"context"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/chainevents"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/config"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/model"
)

// SigningKeysResolver recovers the set of public keys that signed a
// transaction when the node did not hand the pipeline a precomputed
// list — spec §4.9.3's "computed from the chain id with context-free
// and allow-deferred both false" path. The actual signature-recovery
// math lives in the node SDK; this is the seam the pipeline calls
// through.
type SigningKeysResolver interface {
	RecoverKeys(ctx context.Context, tx *chainevents.TransactionMetadata) ([]string, error)
}

// AcceptedTransactionProcessor implements process_accepted_transaction
// (spec §4.9.3).
type AcceptedTransactionProcessor struct {
	cfg      config.Config
	pool     BulkPool
	renderer Renderer
	keys     SigningKeysResolver
	logger   *logp.Logger
}

// NewAcceptedTransactionProcessor returns an
// AcceptedTransactionProcessor pushing to pool. keys may be nil, in
// which case a transaction without precomputed signing keys is
// indexed without a signing_keys field.
func NewAcceptedTransactionProcessor(cfg config.Config, pool BulkPool, renderer Renderer, keys SigningKeysResolver) *AcceptedTransactionProcessor {
	return &AcceptedTransactionProcessor{cfg: cfg, pool: pool, renderer: renderer, keys: keys, logger: newLogger()}
}

// Process renders tx, annotates it, and emits a doc_as_upsert update
// against transactions/<trx_id>.
func (p *AcceptedTransactionProcessor) Process(ctx context.Context, tx *chainevents.TransactionMetadata) {
	if !p.cfg.StoreTransactions {
		return
	}

	rendered, err := p.renderer.RenderTransactionMetadata(ctx, tx)
	if err != nil {
		p.logger.With(logp.Error(err)).Warn("render transaction metadata failed, dropping accepted-transaction update")
		return
	}

	signingKeys := tx.SigningKeys
	if len(signingKeys) == 0 && p.keys != nil {
		recovered, err := p.keys.RecoverKeys(ctx, tx)
		if err != nil {
			p.logger.With(logp.Error(err)).Warn("recover signing keys failed, indexing without signing_keys")
		} else {
			signingKeys = recovered
		}
	}

	doc := model.AcceptedTransactionDoc(rendered, tx.TransactionID, signingKeys, tx.Accepted, tx.Implicit, tx.Scheduled, now())
	body := model.MustSourceLine(model.UpdateDoc{Doc: doc, DocAsUpsert: true})
	push(p.pool, p.logger, model.OpUpdate, model.IndexTransactions, tx.TransactionID, body)
}
