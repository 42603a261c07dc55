// Package intake implements the bounded multi-queue intake with
// adaptive backpressure of spec §4.6: four FIFO queues guarded by one
// mutex/condition-variable pair, with a soft backpressure sleep on the
// producer thread instead of ever rejecting an event.
package intake

import (
	"sync"
	"time"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/logs"
)

const (
	sleepStepMS  = 10
	sleepWarnMS  = 1000
)

// Queues holds the four intake deques (spec §3/§4.6: tx_trace,
// tx_meta, block_state, irreversible_block_state) plus the shared
// mutex/condvar and the adaptive sleep counter.
type Queues struct {
	maxSize int
	logger  *logp.Logger

	mu   sync.Mutex
	cond *sync.Cond

	sleepMS int

	txMeta                []interface{}
	txTrace                []interface{}
	blockState             []interface{}
	irreversibleBlockState []interface{}

	done bool
}

// New returns empty Queues bounded at maxSize (config.Config.QueueSize
// / max_queue_size).
func New(maxSize int) *Queues {
	q := &Queues{maxSize: maxSize, logger: logs.New(logs.Intake)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// enqueue implements spec §4.6's protocol for one named queue. The
// backpressure sleep happens with the lock released so the consumer
// can keep draining while the producer is slowed down.
func (q *Queues) enqueue(queue *[]interface{}, entry interface{}) {
	q.mu.Lock()
	size := len(*queue)
	if size > q.maxSize {
		q.mu.Unlock()
		q.cond.Broadcast()

		q.sleepMS += sleepStepMS
		if q.sleepMS > sleepWarnMS {
			q.logger.Warnf("queue size: %d", size)
		}
		time.Sleep(time.Duration(q.sleepMS) * time.Millisecond)

		q.mu.Lock()
	} else {
		q.sleepMS -= sleepStepMS
		if q.sleepMS < 0 {
			q.sleepMS = 0
		}
	}
	*queue = append(*queue, entry)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// PushTransactionMetadata enqueues an accepted-transaction event.
func (q *Queues) PushTransactionMetadata(e interface{}) { q.enqueue(&q.txMeta, e) }

// PushTransactionTrace enqueues an applied-transaction event.
func (q *Queues) PushTransactionTrace(e interface{}) { q.enqueue(&q.txTrace, e) }

// PushBlockState enqueues an accepted-block event.
func (q *Queues) PushBlockState(e interface{}) { q.enqueue(&q.blockState, e) }

// PushIrreversibleBlockState enqueues an irreversible-block event.
func (q *Queues) PushIrreversibleBlockState(e interface{}) { q.enqueue(&q.irreversibleBlockState, e) }

// Signal shutdown: done is set and the consumer is woken so it can
// drain the remaining queues and exit.
func (q *Queues) Signal() {
	q.mu.Lock()
	q.done = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Drain waits until at least one queue is non-empty (or done), then
// atomically swaps all four queues out for processing and clears the
// sources, returning the four process batches in the fixed dispatch
// order (trace, meta, accept, irreversible — spec §4.7) and whether
// shutdown was requested with every queue now empty.
func (q *Queues) Drain() (txTrace, txMeta, blockState, irreversibleBlockState []interface{}, shutdown bool) {
	q.mu.Lock()
	for len(q.txMeta) == 0 && len(q.txTrace) == 0 && len(q.blockState) == 0 &&
		len(q.irreversibleBlockState) == 0 && !q.done {
		q.cond.Wait()
	}

	txTrace, q.txTrace = q.txTrace, nil
	txMeta, q.txMeta = q.txMeta, nil
	blockState, q.blockState = q.blockState, nil
	irreversibleBlockState, q.irreversibleBlockState = q.irreversibleBlockState, nil
	done := q.done
	q.mu.Unlock()

	empty := len(txTrace) == 0 && len(txMeta) == 0 && len(blockState) == 0 && len(irreversibleBlockState) == 0
	return txTrace, txMeta, blockState, irreversibleBlockState, done && empty
}
