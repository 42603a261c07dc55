package bulker

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ErrEmptyPool is a programming error: the pool was asked for a
// bulker but was configured with zero capacity.
var ErrEmptyPool = errors.New("bulker: empty bulker pool")

// Pool is a fixed-size round-robin ring of Bulkers with a
// load-shedding Get(): once the currently-selected bulker looks full,
// traffic migrates to the next one, smoothing flush stalls (spec
// §4.3).
type Pool struct {
	bulkers  []*Bulker
	bulkSize int
	index    atomic.Uint64
}

// NewPool builds size Bulkers, each posting to index (or the bare
// _bulk endpoint, if index is empty) with the given flush threshold.
func NewPool(client BulkClient, index string, size, bulkSizeBytes int) *Pool {
	p := &Pool{bulkSize: bulkSizeBytes}
	for i := 0; i < size; i++ {
		p.bulkers = append(p.bulkers, New(client, index, bulkSizeBytes))
	}
	return p
}

// Get returns the bulker traffic should currently append to,
// advancing the round-robin index when the current one is at or
// above threshold.
func (p *Pool) Get() (*Bulker, error) {
	n := len(p.bulkers)
	if n == 0 {
		return nil, ErrEmptyPool
	}
	cur := int(p.index.Load()) % n
	b := p.bulkers[cur]
	if b.Size() >= p.bulkSize {
		next := (cur + 1) % n
		p.index.Store(uint64(next))
		return p.bulkers[next], nil
	}
	return b, nil
}

// DrainAll flushes every bulker in the pool and waits for completion.
func (p *Pool) DrainAll(ctx context.Context) error {
	var firstErr error
	for _, b := range p.bulkers {
		if err := b.Drain(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
