package processor

import (
	"context"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/chainevents"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/config"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/filter"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/model"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/workerpool"
)

type recordedTrace struct {
	ordinal int
	trace   *chainevents.ActionTrace
}

// AppliedTransactionProcessor implements process_applied_transaction
// (spec §4.9.4): a stack-based pre-order walk of the action trace tree
// that drives the account-upsert protocol (§4.9.5) unconditionally,
// and — gated on start_block_reached, store_action_traces/
// store_transaction_traces and the filter — records flattened action
// traces for a single deferred render-and-push pool task.
type AppliedTransactionProcessor struct {
	cfg           config.Config
	pool          BulkPool
	renderer      Renderer
	filter        *filter.Filter
	abi           ABIInvalidator
	systemAccount string
	workers       *workerpool.Pool
	logger        *logp.Logger
}

// NewAppliedTransactionProcessor returns an AppliedTransactionProcessor.
func NewAppliedTransactionProcessor(cfg config.Config, pool BulkPool, renderer Renderer, f *filter.Filter, abi ABIInvalidator, systemAccount string, workers *workerpool.Pool) *AppliedTransactionProcessor {
	return &AppliedTransactionProcessor{
		cfg: cfg, pool: pool, renderer: renderer, filter: f, abi: abi,
		systemAccount: systemAccount, workers: workers, logger: newLogger(),
	}
}

// pushReversed appends children onto stack in reverse order, so that
// popping the stack (last-in-first-out) yields children in their
// original left-to-right order.
func pushReversed(stack []*chainevents.ActionTrace, children []*chainevents.ActionTrace) []*chainevents.ActionTrace {
	for i := len(children) - 1; i >= 0; i-- {
		stack = append(stack, children[i])
	}
	return stack
}

// Process walks trace's action-trace tree, applies account upserts
// for every system-account action of an executed transaction, and —
// if anything passed the emission gate — submits a single worker-pool
// task that renders and pushes the recorded action_traces documents
// plus the whole transaction_traces document.
func (p *AppliedTransactionProcessor) Process(ctx context.Context, trace *chainevents.TransactionTrace) {
	executed := trace.Receipt != nil && trace.Receipt.Status == chainevents.StatusExecuted
	emit := startBlockReached(p.cfg, trace.BlockNum) && p.cfg.StoreActionTraces && !trace.Speculative()

	builder := model.NewAccountUpsertBuilder()
	var recorded []recordedTrace
	actionCount := 0

	stack := pushReversed(nil, trace.ActionTraces)
	for len(stack) > 0 {
		at := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if executed && at.Receiver == p.systemAccount {
			p.applyAccountUpsert(ctx, builder, at.Act, now())
		}
		if emit && p.filter.Include(at.Act) {
			recorded = append(recorded, recordedTrace{ordinal: actionCount, trace: at})
		}
		actionCount++

		if len(at.InlineTraces) > 0 {
			stack = pushReversed(stack, at.InlineTraces)
		}
	}

	p.pushAccountUpserts(builder)

	if len(recorded) == 0 {
		return
	}

	storeTraces := startBlockReached(p.cfg, trace.BlockNum) && p.cfg.StoreTransactionTraces && !trace.Speculative()
	p.workers.Submit(p.cfg.QueueSize, func() {
		p.renderAndPush(ctx, trace, recorded, storeTraces)
	})
}

func (p *AppliedTransactionProcessor) pushAccountUpserts(builder *model.AccountUpsertBuilder) {
	for _, u := range builder.Build() {
		body := model.MustSourceLine(u.Body)
		push(p.pool, p.logger, model.OpUpdate, model.IndexAccounts, u.AccountID, body)
	}
}

func (p *AppliedTransactionProcessor) renderAndPush(ctx context.Context, trace *chainevents.TransactionTrace, recorded []recordedTrace, storeTraces bool) {
	ts := now()
	for _, r := range recorded {
		rendered, err := p.renderer.RenderAction(ctx, r.trace.Act)
		if err != nil {
			p.logger.With(logp.Error(err)).Debug("render action trace failed, dropping action_traces document")
			continue
		}
		doc := model.ActionTraceDoc(map[string]interface{}{
			"receiver": r.trace.Receiver,
			"act":      rendered,
		}, ts)
		body := model.MustSourceLine(doc)
		id := model.ActionTraceID(trace.TransactionID, r.ordinal)
		push(p.pool, p.logger, model.OpCreate, model.IndexActionTraces, id, body)
	}

	if !storeTraces {
		return
	}
	rendered, err := p.renderer.RenderTransactionTrace(ctx, trace)
	if err != nil {
		p.logger.With(logp.Error(err)).Warn("render transaction trace failed, dropping transaction_traces document")
		return
	}
	doc := model.TransactionTraceDoc(rendered, ts)
	body := model.MustSourceLine(doc)
	push(p.pool, p.logger, model.OpCreate, model.IndexTransactionTraces, trace.TransactionID, body)
}

func (p *AppliedTransactionProcessor) applyAccountUpsert(ctx context.Context, builder *model.AccountUpsertBuilder, act chainevents.Action, ts int64) {
	rendered, err := p.renderer.RenderAction(ctx, act)
	if err != nil {
		p.logger.With(logp.Error(err)).Debug("decode system action failed, dropping account upsert")
		return
	}
	data, _ := rendered["data"].(map[string]interface{})
	if data == nil {
		return
	}

	switch act.Name {
	case "newaccount":
		applyNewAccount(builder, data, ts)
	case "updateauth":
		applyUpdateAuth(builder, data, ts)
	case "deleteauth":
		applyDeleteAuth(builder, data, ts)
	case "setabi":
		p.applySetabi(builder, data, ts)
	}
}

func applyNewAccount(builder *model.AccountUpsertBuilder, data map[string]interface{}, ts int64) {
	creator, _ := data["creator"].(string)
	name, _ := data["name"].(string)
	if name == "" {
		return
	}
	ownerKeys, ownerControls := authorityEntries("owner", asMap(data["owner"]))
	activeKeys, activeControls := authorityEntries("active", asMap(data["active"]))
	pubKeys := append(ownerKeys, activeKeys...)
	controls := append(ownerControls, activeControls...)
	builder.NewAccount(name, creator, ts, pubKeys, controls, ts)
}

func applyUpdateAuth(builder *model.AccountUpsertBuilder, data map[string]interface{}, ts int64) {
	account, _ := data["account"].(string)
	permission, _ := data["permission"].(string)
	if account == "" || permission == "" {
		return
	}
	keys, controls := authorityEntries(permission, asMap(data["auth"]))
	builder.UpdateAuth(account, permission, keys, controls, ts)
}

func applyDeleteAuth(builder *model.AccountUpsertBuilder, data map[string]interface{}, ts int64) {
	account, _ := data["account"].(string)
	permission, _ := data["permission"].(string)
	if account == "" || permission == "" {
		return
	}
	builder.DeleteAuth(account, permission, ts)
}

// applySetabi invalidates the decoding schema cached for account —
// the next action it appears as receiver for must be decoded with its
// freshly-set ABI — then records the upsert of its (already-decoded,
// since this runs only for the system account's own actions) abi_def.
func (p *AppliedTransactionProcessor) applySetabi(builder *model.AccountUpsertBuilder, data map[string]interface{}, ts int64) {
	account, _ := data["account"].(string)
	if account == "" {
		return
	}
	p.abi.Erase(account)
	builder.Setabi(account, data["abi"], ts)
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// authorityEntries flattens an EOS authority structure's keys and
// delegated accounts into the flat (permission, key) / (permission,
// actor) pairs accounts.pub_keys and accounts.account_controls store.
func authorityEntries(permission string, authority map[string]interface{}) (pubKeys, accountControls []interface{}) {
	if authority == nil {
		return nil, nil
	}
	if keys, ok := authority["keys"].([]interface{}); ok {
		for _, k := range keys {
			km := asMap(k)
			key, _ := km["key"].(string)
			pubKeys = append(pubKeys, map[string]interface{}{"permission": permission, "key": key})
		}
	}
	if accounts, ok := authority["accounts"].([]interface{}); ok {
		for _, a := range accounts {
			am := asMap(a)
			perm := asMap(am["permission"])
			actor, _ := perm["actor"].(string)
			authPerm, _ := perm["permission"].(string)
			accountControls = append(accountControls, map[string]interface{}{
				"permission":             permission,
				"actor":                  actor,
				"authorizing_permission": authPerm,
			})
		}
	}
	return pubKeys, accountControls
}
