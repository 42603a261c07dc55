package processor

import (
	"bytes"
	"context"
	"sync"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/bulker"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/chainevents"
)

// recordingBulkClient captures every NDJSON body a bulker flushes, so
// tests can assert on the action/source pairs a processor pushed.
type recordingBulkClient struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (c *recordingBulkClient) Bulk(ctx context.Context, index string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	c.bodies = append(c.bodies, cp)
	return nil
}

func (c *recordingBulkClient) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, b := range c.bodies {
		for _, line := range bytes.Split(bytes.TrimRight(b, "\n"), []byte("\n")) {
			if len(line) > 0 {
				out = append(out, string(line))
			}
		}
	}
	return out
}

// testPool is a single-bulker BulkPool with a threshold high enough
// that Append never auto-flushes; tests call drain() to force it.
type testPool struct {
	client *recordingBulkClient
	b      *bulker.Bulker
}

func newTestPool() *testPool {
	client := &recordingBulkClient{}
	return &testPool{client: client, b: bulker.New(client, "", 1 << 30)}
}

func (p *testPool) Get() (*bulker.Bulker, error) { return p.b, nil }

func (p *testPool) drain() []string {
	_ = p.b.Drain(context.Background())
	return p.client.lines()
}

// stubRenderer lets tests control every Renderer method's outcome.
type stubRenderer struct {
	renderAction      func(ctx context.Context, act chainevents.Action) (map[string]interface{}, error)
	renderTxTrace     func(ctx context.Context, t *chainevents.TransactionTrace) (map[string]interface{}, error)
	renderTxMetadata  func(ctx context.Context, tx *chainevents.TransactionMetadata) (map[string]interface{}, error)
	renderBlock       func(ctx context.Context, b *chainevents.Block) (map[string]interface{}, error)
}

func (r *stubRenderer) RenderAction(ctx context.Context, act chainevents.Action) (map[string]interface{}, error) {
	if r.renderAction != nil {
		return r.renderAction(ctx, act)
	}
	return map[string]interface{}{"account": act.Receiver, "name": act.Name}, nil
}

func (r *stubRenderer) RenderTransactionTrace(ctx context.Context, t *chainevents.TransactionTrace) (map[string]interface{}, error) {
	if r.renderTxTrace != nil {
		return r.renderTxTrace(ctx, t)
	}
	return map[string]interface{}{"id": t.TransactionID}, nil
}

func (r *stubRenderer) RenderTransactionMetadata(ctx context.Context, tx *chainevents.TransactionMetadata) (map[string]interface{}, error) {
	if r.renderTxMetadata != nil {
		return r.renderTxMetadata(ctx, tx)
	}
	return map[string]interface{}{}, nil
}

func (r *stubRenderer) RenderBlock(ctx context.Context, b *chainevents.Block) (map[string]interface{}, error) {
	if r.renderBlock != nil {
		return r.renderBlock(ctx, b)
	}
	return map[string]interface{}{"previous": b.Previous}, nil
}

// stubExists canned-answers DocExists.
type stubExists struct {
	exists map[string]bool
	err    error
}

func (s *stubExists) DocExists(ctx context.Context, index, id string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.exists[index+"/"+id], nil
}

// stubInvalidator records Erase calls.
type stubInvalidator struct {
	erased []string
}

func (s *stubInvalidator) Erase(name string) { s.erased = append(s.erased, name) }
