package bulker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolGetErrorsOnEmptyPool(t *testing.T) {
	p := NewPool(&recordingClient{}, "blocks", 0, 1024)
	_, err := p.Get()
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestPoolGetRoundRobinsOnceCurrentIsFull(t *testing.T) {
	client := &recordingClient{}
	p := NewPool(client, "blocks", 2, 10)

	first, err := p.Get()
	require.NoError(t, err)
	first.Append([]byte(`{"index":{}}`), []byte(`{"a":1}`))

	second, err := p.Get()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestPoolDrainAllFlushesEveryBulker(t *testing.T) {
	client := &recordingClient{}
	p := NewPool(client, "blocks", 3, 1024)
	for _, b := range p.bulkers {
		b.Append([]byte(`{"index":{}}`), []byte(`{"a":1}`))
	}
	require.NoError(t, p.DrainAll(context.Background()))
	assert.Equal(t, 3, client.count())
}
