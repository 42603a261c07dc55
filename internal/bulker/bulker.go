// Package bulker implements the batch accumulator and bulker pool of
// spec §4.2-§4.3: thread-safe byte buffers that coalesce action/source
// document pairs and flush to the search client once a size threshold
// is crossed.
//
// The two-lock split (body lock vs client lock) is lifted directly
// from the original bulker.cpp/.hpp: append holds only body_mtx, a
// flush holds only client_mtx, so producers keep appending while a
// prior flush is still in flight. errgroup.Group tracks in-flight
// flushes for Drain the way the teacher's modelindexer.Indexer
// tracks in-flight bulk requests.
package bulker

import (
	"bytes"
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/esclient"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/logs"
)

// BulkClient is the subset of esclient.Client the bulker needs, named
// so tests can substitute a recorder.
type BulkClient interface {
	Bulk(ctx context.Context, index string, body []byte) error
}

// Bulker is a protected byte buffer plus a flush threshold.
type Bulker struct {
	index    string
	bulkSize int
	client   BulkClient
	logger   *logp.Logger

	bodyMu sync.Mutex
	body   *bytes.Buffer

	clientMu sync.Mutex

	g errgroup.Group
}

// New returns a Bulker that flushes to client under index (empty
// index means the caller writes fully-qualified _index values into
// each action line, and bulk posts to the bare _bulk endpoint).
func New(client BulkClient, index string, bulkSizeBytes int) *Bulker {
	return &Bulker{
		index:    index,
		bulkSize: bulkSizeBytes,
		client:   client,
		logger:   logs.New(logs.Bulker),
		body:     new(bytes.Buffer),
	}
}

// Append appends "action\nsource\n" to the buffer. If the resulting
// size crosses bulkSize, the buffer is atomically swapped out and a
// flush of the detached buffer is kicked off (but not waited on).
func (b *Bulker) Append(actionLine, sourceLine []byte) {
	var detached *bytes.Buffer

	b.bodyMu.Lock()
	b.body.Write(actionLine)
	b.body.WriteByte('\n')
	b.body.Write(sourceLine)
	b.body.WriteByte('\n')
	if b.body.Len() >= b.bulkSize {
		detached = b.body
		b.body = new(bytes.Buffer)
	}
	b.bodyMu.Unlock()

	if detached != nil {
		b.flushAsync(detached)
	}
}

// Size returns the current buffered byte count.
func (b *Bulker) Size() int {
	b.bodyMu.Lock()
	defer b.bodyMu.Unlock()
	return b.body.Len()
}

func (b *Bulker) flushAsync(detached *bytes.Buffer) {
	b.g.Go(func() error {
		return b.flush(context.Background(), detached)
	})
}

func (b *Bulker) flush(ctx context.Context, detached *bytes.Buffer) error {
	if detached.Len() == 0 {
		return nil
	}
	b.clientMu.Lock()
	defer b.clientMu.Unlock()
	if err := b.client.Bulk(ctx, b.index, detached.Bytes()); err != nil {
		b.logger.With(logp.Error(err)).Error("bulk flush failed")
		return err
	}
	return nil
}

// Drain flushes any remaining buffered bytes and waits for all
// in-flight and the final flush to complete. Destruction of a bulker
// must always go through Drain so no residual buffer is lost — the
// original bulker.cpp does this in its destructor.
func (b *Bulker) Drain(ctx context.Context) error {
	b.bodyMu.Lock()
	remaining := b.body
	b.body = new(bytes.Buffer)
	b.bodyMu.Unlock()

	if remaining.Len() > 0 {
		b.logger.Infof("draining bulker, size: %d", remaining.Len())
		b.flushAsync(remaining)
	}
	return b.g.Wait()
}
