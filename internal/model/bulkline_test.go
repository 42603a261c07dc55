package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionLineIndex(t *testing.T) {
	line := ActionLine(OpIndex, "blocks", "abc123")
	var decoded map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(line, &decoded))
	header := decoded["index"]
	assert.Equal(t, "blocks", header["_index"])
	assert.Equal(t, "_doc", header["_type"])
	assert.Equal(t, "abc123", header["_id"])
	assert.NotContains(t, header, "retry_on_conflict")
}

func TestActionLineUpdateSetsRetryOnConflict(t *testing.T) {
	line := ActionLine(OpUpdate, "accounts", "alice")
	var decoded map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(line, &decoded))
	assert.EqualValues(t, 100, decoded["update"]["retry_on_conflict"])
}

func TestMustSourceLineRoundTrips(t *testing.T) {
	body := MustSourceLine(UpdateDoc{Doc: map[string]interface{}{"a": 1}, DocAsUpsert: true})
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, true, decoded["doc_as_upsert"])
}

func TestScriptUpsertShape(t *testing.T) {
	su := ScriptUpsert{
		Script:         Script{Lang: "painless", Source: "ctx._source.x = 1", Params: map[string]interface{}{}},
		ScriptedUpsert: true,
		Upsert:         map[string]interface{}{},
	}
	body := MustSourceLine(su)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Contains(t, decoded, "script")
	assert.Equal(t, true, decoded["scripted_upsert"])
	assert.Contains(t, decoded, "upsert")
}
