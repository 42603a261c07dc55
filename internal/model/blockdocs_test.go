package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcceptBlockStatesGuardsFirstWrite(t *testing.T) {
	su := AcceptBlockStates(10, "blockid", true, map[string]interface{}{"x": 1}, 1000)
	assert.Contains(t, su.Script.Source, "ctx._source.block_num == null")
	assert.Equal(t, uint32(10), su.Script.Params["block_num"])
	assert.Equal(t, "blockid", su.Script.Params["block_id"])
}

func TestIrreversibleFlipsFlags(t *testing.T) {
	su := Irreversible(true, 2000)
	assert.Contains(t, su.Script.Source, "ctx._source.irreversible = true")
	assert.Equal(t, true, su.Script.Params["validated"])
}

func TestTransactionIrreversibleUpdate(t *testing.T) {
	doc := TransactionIrreversibleUpdate("blockid", 5, 3000)
	fields, ok := doc.Doc.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, true, fields["irreversible"])
	assert.Equal(t, "blockid", fields["block_id"])
	assert.Equal(t, uint32(5), fields["block_num"])
}
