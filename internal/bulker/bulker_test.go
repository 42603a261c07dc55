package bulker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	mu    sync.Mutex
	calls [][]byte
	err   error
}

func (c *recordingClient) Bulk(ctx context.Context, index string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	c.calls = append(c.calls, cp)
	return c.err
}

func (c *recordingClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestAppendBelowThresholdDoesNotFlush(t *testing.T) {
	client := &recordingClient{}
	b := New(client, "blocks", 1024)
	b.Append([]byte(`{"index":{}}`), []byte(`{"a":1}`))
	assert.Greater(t, b.Size(), 0)
	require.NoError(t, b.Drain(context.Background()))
	assert.Equal(t, 1, client.count())
}

func TestAppendCrossingThresholdFlushesAsync(t *testing.T) {
	client := &recordingClient{}
	b := New(client, "blocks", 10)
	b.Append([]byte(`{"index":{}}`), []byte(`{"a":1}`))
	require.NoError(t, b.Drain(context.Background()))
	assert.Equal(t, 1, client.count())
	assert.Equal(t, 0, b.Size())
}

func TestDrainIsIdempotentOnEmptyBuffer(t *testing.T) {
	client := &recordingClient{}
	b := New(client, "blocks", 1024)
	require.NoError(t, b.Drain(context.Background()))
	assert.Equal(t, 0, client.count())
}

func TestDrainPropagatesFlushError(t *testing.T) {
	client := &recordingClient{err: assertErr}
	b := New(client, "blocks", 1024)
	b.Append([]byte(`{"index":{}}`), []byte(`{"a":1}`))
	assert.Error(t, b.Drain(context.Background()))
}

var assertErr = assertError("flush failed")

type assertError string

func (e assertError) Error() string { return string(e) }
