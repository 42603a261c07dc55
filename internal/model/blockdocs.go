package model

// Block-related index names (spec §3).
const (
	IndexBlocks       = "blocks"
	IndexBlockStates  = "block_states"
	IndexAccounts     = "accounts"
	IndexTransactions = "transactions"
	IndexTransactionTraces = "transaction_traces"
	IndexActionTraces      = "action_traces"
)

const acceptBlockStatesSource = `if (ctx._source.block_num == null) { ctx._source.block_num = params.block_num; ctx._source.block_id = params.block_id; ctx._source.validated = params.validated; ctx._source.block_header_state = params.block_header_state; } ctx._source.createAt = params.createAt;`

// AcceptBlockStates builds the block_states scripted upsert of spec
// §4.9.1: block_num/block_id/validated/block_header_state are only
// set on first write, createAt always advances.
func AcceptBlockStates(blockNum uint32, blockID string, validated bool, headerState interface{}, now int64) ScriptUpsert {
	return ScriptUpsert{
		Script: Script{
			Lang:   "painless",
			Source: acceptBlockStatesSource,
			Params: map[string]interface{}{
				"block_num":          blockNum,
				"block_id":           blockID,
				"validated":          validated,
				"block_header_state": headerState,
				"createAt":           now,
			},
		},
		ScriptedUpsert: true,
		Upsert:         map[string]interface{}{},
	}
}

const acceptBlocksSource = `if (ctx._source.block_num == null) { ctx._source.block_num = params.block_num; ctx._source.block_id = params.block_id; ctx._source.block = params.block; ctx._source.irreversible = params.irreversible; } ctx._source.createAt = params.createAt;`

// AcceptBlocks builds the blocks scripted upsert of spec §4.9.1.
func AcceptBlocks(blockNum uint32, blockID string, renderedBlock interface{}, now int64) ScriptUpsert {
	return ScriptUpsert{
		Script: Script{
			Lang:   "painless",
			Source: acceptBlocksSource,
			Params: map[string]interface{}{
				"block_num":    blockNum,
				"block_id":     blockID,
				"block":        renderedBlock,
				"irreversible": false,
				"createAt":     now,
			},
		},
		ScriptedUpsert: true,
		Upsert:         map[string]interface{}{},
	}
}

const irreversibleSource = `ctx._source.validated = params.validated; ctx._source.irreversible = true; ctx._source.updateAt = params.updateAt;`

// Irreversible builds the validated/irreversible/updateAt scripted
// update shared by block_states and blocks on finality (spec §4.9.2).
// The upsert body is empty: on a missing document the script alone
// seeds validated/irreversible/updateAt, without the accept-path
// fields. IrreversibleBlockProcessor pushes the accept-shaped document
// separately when it finds none.
func Irreversible(validated bool, now int64) ScriptUpsert {
	return ScriptUpsert{
		Script: Script{
			Lang:   "painless",
			Source: irreversibleSource,
			Params: map[string]interface{}{
				"validated": validated,
				"updateAt":  now,
			},
		},
		ScriptedUpsert: true,
		Upsert:         map[string]interface{}{},
	}
}

// TransactionIrreversibleUpdate is the plain (non-scripted) partial
// update applied to each transaction in a newly-irreversible block
// (spec §4.9.2).
func TransactionIrreversibleUpdate(blockID string, blockNum uint32, now int64) UpdateDoc {
	return UpdateDoc{
		Doc: map[string]interface{}{
			"irreversible": true,
			"block_id":     blockID,
			"block_num":    blockNum,
			"updateAt":     now,
		},
	}
}
