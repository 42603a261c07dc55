package chainevents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeculativeWithoutProducerBlockID(t *testing.T) {
	trace := &TransactionTrace{}
	assert.True(t, trace.Speculative())

	trace.ProducerBlockID = "block1"
	assert.False(t, trace.Speculative())
}

func TestTransactionReceiptID(t *testing.T) {
	r := TransactionReceipt{TransactionID: "trx1"}
	assert.Equal(t, "trx1", r.ID())
}
