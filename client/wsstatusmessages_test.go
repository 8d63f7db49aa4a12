package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeStatus(t *testing.T, msg string) *WSStatusMessage {
	t.Helper()
	m := &WSStatusMessage{}
	require.NoError(t, json.Unmarshal([]byte(msg), m))
	return m
}

func TestWSStatusMessageExecuting(t *testing.T) {
	m := decodeStatus(t, `{"type": "executing", "data": {"node": "12", "prompt_id": "p"}}`)
	data, ok := m.Data.(*WSMessageDataExecuting)
	require.True(t, ok)
	require.NotNil(t, data.Node)
	assert.Equal(t, "12", *data.Node)
	assert.Equal(t, "p", m.promptID())

	m = decodeStatus(t, `{"type": "executing", "data": {"node": null, "prompt_id": "p"}}`)
	assert.Nil(t, m.Data.(*WSMessageDataExecuting).Node)
}

func TestWSStatusMessageExecuted(t *testing.T) {
	m := decodeStatus(t, `{"type": "executed", "data": {
		"node": "19",
		"prompt_id": "p",
		"output": {
			"images": [{"filename": "ComfyUI_00046_.png", "subfolder": "", "type": "output"}, {"subfolder": "x"}],
			"text": ["a caption"],
			"animated": [false],
			"ignored": {"not": "a list"}
		}
	}}`)
	data, ok := m.Data.(*WSMessageDataExecuted)
	require.True(t, ok)
	assert.Equal(t, "19", data.Node)
	assert.Equal(t, []DataOutput{{Filename: "ComfyUI_00046_.png", Type: "output"}}, data.Output["images"])
	assert.Equal(t, []DataOutput{{Type: "text", Text: "a caption"}}, data.Output["text"])
	assert.Equal(t, []DataOutput{{Type: "unknown", Text: "false"}}, data.Output["animated"])
	assert.NotContains(t, data.Output, "ignored")
}

func TestWSStatusMessagePromptIDs(t *testing.T) {
	for _, msg := range []string{
		`{"type": "execution_start", "data": {"prompt_id": "p"}}`,
		`{"type": "execution_cached", "data": {"nodes": [], "prompt_id": "p"}}`,
		`{"type": "progress", "data": {"value": 1, "max": 2, "prompt_id": "p", "node": "3"}}`,
		`{"type": "execution_success", "data": {"prompt_id": "p", "timestamp": 1}}`,
		`{"type": "execution_interrupted", "data": {"prompt_id": "p", "node_id": "3"}}`,
		`{"type": "execution_error", "data": {"prompt_id": "p", "node_id": "3", "exception_message": "x"}}`,
	} {
		assert.Equal(t, "p", decodeStatus(t, msg).promptID(), msg)
	}

	assert.Equal(t, "", decodeStatus(t, `{"type": "status", "data": {"status": {"exec_info": {"queue_remaining": 0}}}}`).promptID())
	assert.Equal(t, "", decodeStatus(t, `{"type": "progress", "data": {"value": 1, "max": 2}}`).promptID())
}

func TestWSStatusMessageUnknownType(t *testing.T) {
	m := decodeStatus(t, `{"type": "crystools.monitor", "data": {"cpu_utilization": 3}}`)
	assert.Equal(t, "crystools.monitor", m.Type)
	assert.Nil(t, m.Data)
}

func TestWSStatusMessageInvalid(t *testing.T) {
	m := &WSStatusMessage{}
	assert.Error(t, json.Unmarshal([]byte(`{"type": "progress", "data": {"value": "one"}}`), m))
}
