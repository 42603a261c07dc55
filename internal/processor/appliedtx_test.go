package processor

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/chainevents"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/config"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/filter"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/workerpool"
)

// drainWorkers waits for the pool's task queue to empty so deferred
// render-and-push work has had a chance to complete before assertions.
func drainWorkers(p *workerpool.Pool) {
	for i := 0; i < 100 && p.QueueSize() > 0; i++ {
		time.Sleep(time.Millisecond)
	}
}

func action(receiver, name string) chainevents.Action {
	return chainevents.Action{Receiver: receiver, Name: name}
}

func trace(receiver, name string, inline ...*chainevents.ActionTrace) *chainevents.ActionTrace {
	return &chainevents.ActionTrace{Receiver: receiver, Act: action(receiver, name), InlineTraces: inline}
}

func TestAppliedTransactionProcessorOrdinalsMatchWorkedExample(t *testing.T) {
	// top-level [A, B], A.inline = [C, D], D.inline = [E]; expected
	// ordinals A=0, C=1, D=2, E=3, B=4.
	e := trace("eosio.token", "e")
	d := trace("eosio.token", "d", e)
	c := trace("eosio.token", "c")
	a := trace("eosio.token", "a", c, d)
	b := trace("eosio.token", "b")

	cfg := config.Default()
	pool := newTestPool()
	workers := workerpool.New(1)
	defer workers.Close()
	f := filter.New(true, nil, nil)

	p := NewAppliedTransactionProcessor(cfg, pool, &stubRenderer{}, f, &stubInvalidator{}, "eosio", workers)

	p.Process(context.Background(), &chainevents.TransactionTrace{
		TransactionID:   "trx1",
		ProducerBlockID: "block1",
		Receipt:         &chainevents.Receipt{Status: chainevents.StatusExecuted},
		ActionTraces:    []*chainevents.ActionTrace{a, b},
	})

	drainWorkers(workers)
	lines := pool.drain()

	// action_traces ids encode "<trx_id>-<ordinal>"; recover the
	// ordinal each action name landed at.
	ordinalByAction := map[string]int{}
	for i := 0; i+1 < len(lines); i += 2 {
		var header map[string]map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &header))
		id, ok := header["create"]["_id"].(string)
		if !ok || !strings.HasPrefix(id, "trx1-") {
			continue
		}
		var source map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(lines[i+1]), &source))
		act, ok := source["act"].(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := act["name"].(string)
		ordinal := id[len("trx1-"):]
		ordinalByAction[name] = atoi(ordinal)
	}

	assert.Equal(t, 0, ordinalByAction["a"])
	assert.Equal(t, 1, ordinalByAction["c"])
	assert.Equal(t, 2, ordinalByAction["d"])
	assert.Equal(t, 3, ordinalByAction["e"])
	assert.Equal(t, 4, ordinalByAction["b"])
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

func TestAppliedTransactionProcessorSkipsEmissionWhenSpeculative(t *testing.T) {
	cfg := config.Default()
	pool := newTestPool()
	workers := workerpool.New(1)
	defer workers.Close()
	f := filter.New(true, nil, nil)

	p := NewAppliedTransactionProcessor(cfg, pool, &stubRenderer{}, f, &stubInvalidator{}, "eosio", workers)

	p.Process(context.Background(), &chainevents.TransactionTrace{
		TransactionID: "trx1",
		Receipt:       &chainevents.Receipt{Status: chainevents.StatusExecuted},
		ActionTraces:  []*chainevents.ActionTrace{trace("eosio.token", "transfer")},
		// ProducerBlockID left empty: speculative.
	})

	drainWorkers(workers)
	assert.Empty(t, pool.drain(), "speculative traces must not emit action_traces/transaction_traces")
}

func TestAppliedTransactionProcessorRunsAccountUpsertEvenWhenSpeculative(t *testing.T) {
	cfg := config.Default()
	pool := newTestPool()
	workers := workerpool.New(1)
	defer workers.Close()
	f := filter.New(true, nil, nil)

	renderer := &stubRenderer{
		renderAction: func(ctx context.Context, act chainevents.Action) (map[string]interface{}, error) {
			return map[string]interface{}{"data": map[string]interface{}{
				"creator": "eosio", "name": "newacct",
			}}, nil
		},
	}
	p := NewAppliedTransactionProcessor(cfg, pool, renderer, f, &stubInvalidator{}, "eosio", workers)

	p.Process(context.Background(), &chainevents.TransactionTrace{
		TransactionID: "trx1",
		Receipt:       &chainevents.Receipt{Status: chainevents.StatusExecuted},
		ActionTraces:  []*chainevents.ActionTrace{trace("eosio", "newaccount")},
	})

	drainWorkers(workers)
	lines := pool.drain()
	require.Len(t, lines, 2, "account upsert still runs for a speculative trace")
	assert.Contains(t, lines[0], `"_index":"accounts"`)
}

func TestAppliedTransactionProcessorSkipsAccountUpsertWhenNotExecuted(t *testing.T) {
	cfg := config.Default()
	pool := newTestPool()
	workers := workerpool.New(1)
	defer workers.Close()
	f := filter.New(true, nil, nil)

	p := NewAppliedTransactionProcessor(cfg, pool, &stubRenderer{}, f, &stubInvalidator{}, "eosio", workers)

	p.Process(context.Background(), &chainevents.TransactionTrace{
		TransactionID:   "trx1",
		ProducerBlockID: "block1",
		Receipt:         &chainevents.Receipt{Status: chainevents.StatusHardFail},
		ActionTraces:    []*chainevents.ActionTrace{trace("eosio", "newaccount")},
	})

	drainWorkers(workers)
	lines := pool.drain()
	for _, l := range lines {
		assert.NotContains(t, l, `"_index":"accounts"`)
	}
}

func TestAppliedTransactionProcessorSetabiErasesCache(t *testing.T) {
	cfg := config.Default()
	pool := newTestPool()
	workers := workerpool.New(1)
	defer workers.Close()
	f := filter.New(true, nil, nil)
	invalidator := &stubInvalidator{}

	renderer := &stubRenderer{
		renderAction: func(ctx context.Context, act chainevents.Action) (map[string]interface{}, error) {
			return map[string]interface{}{"data": map[string]interface{}{
				"account": "eosio.token", "abi": map[string]interface{}{"version": "eosio::abi/1.1"},
			}}, nil
		},
	}
	p := NewAppliedTransactionProcessor(cfg, pool, renderer, f, invalidator, "eosio", workers)

	p.Process(context.Background(), &chainevents.TransactionTrace{
		TransactionID:   "trx1",
		ProducerBlockID: "block1",
		Receipt:         &chainevents.Receipt{Status: chainevents.StatusExecuted},
		ActionTraces:    []*chainevents.ActionTrace{trace("eosio", "setabi")},
	})

	drainWorkers(workers)
	pool.drain()
	require.Equal(t, []string{"eosio.token"}, invalidator.erased)
}
