// Package model builds the bulk action/source line pairs, Painless
// upsert scripts, and document bodies the event processors push into
// the bulker pool (spec §4.9). Document marshaling uses json-iterator,
// the teacher's preferred drop-in encoder for its own document
// bodies, rather than encoding/json.
package model

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Op is the bulk operation key of an action line.
type Op string

const (
	OpIndex  Op = "index"
	OpUpdate Op = "update"
	OpCreate Op = "create"
)

const retryOnConflict = 100

type actionHeader struct {
	Index           string `json:"_index"`
	Type            string `json:"_type"`
	ID              string `json:"_id,omitempty"`
	RetryOnConflict int    `json:"retry_on_conflict,omitempty"`
}

// ActionLine renders the bulk header line for op against index/id.
func ActionLine(op Op, index, id string) []byte {
	header := actionHeader{Index: index, Type: "_doc", ID: id}
	if op == OpUpdate {
		header.RetryOnConflict = retryOnConflict
	}
	body := map[string]actionHeader{string(op): header}
	b, _ := json.Marshal(body)
	return b
}

// SourceLine marshals doc as the source line of a bulk pair.
func SourceLine(doc interface{}) ([]byte, error) {
	return json.Marshal(doc)
}

// MustSourceLine marshals doc, panicking on error — reserved for
// internally-constructed documents whose shape is always JSON-safe
// (Painless script envelopes with known field types), the way the
// original's fc::json::to_string calls are never checked for
// marshaling failure either.
func MustSourceLine(doc interface{}) []byte {
	b, err := SourceLine(doc)
	if err != nil {
		panic(err)
	}
	return b
}

// UpdateDoc is the `{"doc": ..., "doc_as_upsert": true}` envelope used
// by plain (non-scripted) upserts, e.g. process_accepted_transaction.
type UpdateDoc struct {
	Doc         interface{} `json:"doc"`
	DocAsUpsert bool        `json:"doc_as_upsert,omitempty"`
}

// ScriptUpdate is the `{"script": {...}}` envelope for scripted
// updates that assume the document already exists. The processors do
// not use it; the irreversible-block flip is a ScriptUpsert.
type ScriptUpdate struct {
	Script Script `json:"script"`
}

// ScriptUpsert is the `{"script": {...}, "scripted_upsert": true,
// "upsert": {}}` envelope used by the account-upsert protocol and any
// other scripted update that must also seed a brand-new document.
type ScriptUpsert struct {
	Script         Script      `json:"script"`
	ScriptedUpsert bool        `json:"scripted_upsert"`
	Upsert         interface{} `json:"upsert"`
}

// Script is a Painless script body: lang + source + bound params.
type Script struct {
	Lang   string                 `json:"lang"`
	Source string                 `json:"source"`
	Params map[string]interface{} `json:"params"`
}
