// Package chainevents defines the event payloads the ingestion
// pipeline receives from the node SDK. The node itself, its signal
// dispatch, and its wire types are external collaborators (spec §1);
// this package only carries the fields the pipeline actually reads
// off those events, the same way the teacher's model package carries
// a flattened APMEvent rather than the agent wire format.
package chainevents

import "time"

// TransactionStatus mirrors the receipt status values a trace can
// carry.
type TransactionStatus string

const (
	StatusExecuted  TransactionStatus = "executed"
	StatusSoftFail  TransactionStatus = "soft-fail"
	StatusHardFail  TransactionStatus = "hard-fail"
	StatusDelayed   TransactionStatus = "delayed"
	StatusExpired   TransactionStatus = "expired"
)

// PermissionLevel is an (actor, permission) pair as carried in an
// action's authorization list.
type PermissionLevel struct {
	Actor      string `json:"actor"`
	Permission string `json:"permission"`
}

// Action is one opaque, ABI-encoded action invocation.
type Action struct {
	Receiver      string            `json:"account"`
	Name          string            `json:"name"`
	Authorization []PermissionLevel `json:"authorization"`
	Data          []byte            `json:"data"`
}

// ActionTrace is the result of applying one Action, including any
// actions it spawned inline (in original execution order).
type ActionTrace struct {
	Receiver     string         `json:"receiver"`
	Act          Action         `json:"act"`
	InlineTraces []*ActionTrace `json:"inline_traces,omitempty"`
}

// Receipt carries the execution outcome of an applied transaction.
type Receipt struct {
	Status TransactionStatus `json:"status"`
}

// TransactionTrace is the tree of action traces produced by applying
// one transaction.
type TransactionTrace struct {
	TransactionID   string         `json:"id"`
	Receipt         *Receipt       `json:"receipt,omitempty"`
	ProducerBlockID string         `json:"producer_block_id,omitempty"`
	BlockNum        uint32         `json:"block_num,omitempty"`
	ActionTraces    []*ActionTrace `json:"action_traces"`
}

// Speculative reports whether this trace has not yet been included in
// a concrete produced block.
func (t *TransactionTrace) Speculative() bool {
	return t.ProducerBlockID == ""
}

// TransactionMetadata is the accepted-transaction event payload.
// Fields is whatever non-action wire data (expiration, ref_block_num,
// ...) to_variant_with_abi would otherwise pass through untouched;
// the core never interprets it.
type TransactionMetadata struct {
	TransactionID       string
	Actions             []Action
	ContextFreeActions  []Action
	Fields              map[string]interface{}
	SigningKeys         []string // precomputed, optional
	Accepted            bool
	Implicit            bool
	Scheduled           bool
}

// TransactionReceipt is one entry of a block's transaction list, as
// carried by BlockState/IrreversibleBlockState.
//
// TransactionID must always be populated via the node SDK's
// unpack-then-id path on a fresh copy of the packed transaction, never
// via a mutating .id() accessor — see spec §4.9.2 and §9. That
// derivation happens at the SDK boundary, outside this package;
// TransactionID here is simply the resulting hex string.
type TransactionReceipt struct {
	TransactionID string
}

// ID resolves the id of one transaction receipt.
func (r TransactionReceipt) ID() string {
	return r.TransactionID
}

// BlockHeaderState is the serialized header state the node attaches
// to a block-state event; opaque beyond what processors render via
// the ABI-aware serializer.
type BlockHeaderState struct {
	Raw []byte
}

// Block is the block body, including its transaction list. Fields
// carries the remaining, non-transaction wire data (producer,
// schedule version, ...) untouched.
type Block struct {
	Previous     string
	Transactions []TransactionReceipt
	Fields       map[string]interface{}
}

// BlockState is the accepted/irreversible block event payload.
type BlockState struct {
	BlockNum   uint32
	BlockID    string
	Validated  bool
	HeaderState BlockHeaderState
	Block      *Block
}

// Now is overridable in tests; production code always calls the real
// wall clock here so createAt/updateAt stamps reflect processing time,
// per spec §3's invariant.
var Now = time.Now
