package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// WSStatusMessage is a JSON message from the ComfyUI websocket. Data holds a
// pointer to the WSMessageData* type matching Type, or nil for unknown types.
type WSStatusMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// wsMessageData maps a websocket message type to a constructor for its
// payload.
var wsMessageData = map[string]func() interface{}{
	"status":                func() interface{} { return &WSMessageDataStatus{} },
	"execution_start":       func() interface{} { return &WSMessageDataExecutionStart{} },
	"execution_cached":      func() interface{} { return &WSMessageDataExecutionCached{} },
	"executing":             func() interface{} { return &WSMessageDataExecuting{} },
	"progress":              func() interface{} { return &WSMessageDataProgress{} },
	"executed":              func() interface{} { return &WSMessageDataExecuted{} },
	"execution_success":     func() interface{} { return &WSMessageDataExecutionSuccess{} },
	"execution_interrupted": func() interface{} { return &WSMessageExecutionInterrupted{} },
	"execution_error":       func() interface{} { return &WSMessageExecutionError{} },
}

func (sm *WSStatusMessage) UnmarshalJSON(b []byte) error {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return err
	}

	sm.Type = envelope.Type
	sm.Data = nil
	newData, known := wsMessageData[envelope.Type]
	if !known {
		return nil
	}
	sm.Data = newData()
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, sm.Data); err != nil {
		return fmt.Errorf("decoding %s message: %w", envelope.Type, err)
	}
	return nil
}

type WSMessageDataStatus struct {
	Status struct {
		ExecInfo struct {
			QueueRemaining int `json:"queue_remaining"`
		} `json:"exec_info"`
	} `json:"status"`
	SID string `json:"sid,omitempty"`
}

type WSMessageDataExecutionStart struct {
	PromptID string `json:"prompt_id"`
}

type WSMessageDataExecutionCached struct {
	Nodes    []string `json:"nodes"`
	PromptID string   `json:"prompt_id"`
}

// WSMessageDataExecuting announces the node being run. A nil Node means the
// prompt has finished.
type WSMessageDataExecuting struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

/*
{"type": "executing", "data": {"node": "12", "prompt_id": "ed986d60-2a27-4d28-8871-2fdb36582902"}}
{"type": "executing", "data": {"node": null, "prompt_id": "ed986d60-2a27-4d28-8871-2fdb36582902"}}
*/

type WSMessageDataProgress struct {
	Value    int    `json:"value"`
	Max      int    `json:"max"`
	PromptID string `json:"prompt_id"`
	Node     string `json:"node"`
}

type WSMessageDataExecuted struct {
	Node     string                  `json:"node"`
	Output   map[string][]DataOutput `json:"output"`
	PromptID string                  `json:"prompt_id"`
}

func (mde *WSMessageDataExecuted) UnmarshalJSON(b []byte) error {
	var raw struct {
		Node     string                     `json:"node"`
		Output   map[string]json.RawMessage `json:"output"`
		PromptID string                     `json:"prompt_id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	mde.Node = raw.Node
	mde.PromptID = raw.PromptID
	mde.Output = make(map[string][]DataOutput, len(raw.Output))
	for name, value := range raw.Output {
		var entries []json.RawMessage
		if json.Unmarshal(value, &entries) != nil {
			continue
		}
		outputs := make([]DataOutput, 0, len(entries))
		for _, entry := range entries {
			out, ok := decodeOutputEntry(entry)
			if !ok {
				slog.Warn("executed output entry without filename", "node", raw.Node, "output", name)
				continue
			}
			outputs = append(outputs, out)
		}
		mde.Output[name] = outputs
	}
	return nil
}

// decodeOutputEntry reads one entry of an executed output list. Entries are
// file references, or plain strings for text producing nodes. A file
// reference without a filename is rejected.
func decodeOutputEntry(entry json.RawMessage) (DataOutput, bool) {
	var text string
	if json.Unmarshal(entry, &text) == nil {
		return DataOutput{Type: "text", Text: text}, true
	}

	var ref struct {
		Filename  *string `json:"filename"`
		Subfolder string  `json:"subfolder"`
		Type      string  `json:"type"`
	}
	if json.Unmarshal(entry, &ref) == nil {
		if ref.Filename == nil {
			return DataOutput{}, false
		}
		return DataOutput{Filename: *ref.Filename, Subfolder: ref.Subfolder, Type: ref.Type}, true
	}

	var other interface{}
	_ = json.Unmarshal(entry, &other)
	return DataOutput{Type: "unknown", Text: fmt.Sprint(other)}, true
}

type WSMessageDataExecutionSuccess struct {
	PromptID  string `json:"prompt_id"`
	Timestamp int64  `json:"timestamp"`
}

type WSMessageExecutionInterrupted struct {
	PromptID string   `json:"prompt_id"`
	Node     string   `json:"node_id"`
	NodeType string   `json:"node_type"`
	Executed []string `json:"executed"`
}

/*
{"type": "execution_interrupted", "data": {"prompt_id": "dc7093d7-980a-4fe6-bf0c-f6fef932c74b", "node_id": "19", "node_type": "SaveImage", "executed": ["5", "17", "10", "11"]}}
*/

type WSMessageExecutionError struct {
	PromptID         string                 `json:"prompt_id"`
	Node             string                 `json:"node_id"`
	NodeType         string                 `json:"node_type"`
	Executed         []string               `json:"executed"`
	ExceptionMessage string                 `json:"exception_message"`
	ExceptionType    string                 `json:"exception_type"`
	Traceback        []string               `json:"traceback"`
	CurrentInputs    map[string]interface{} `json:"current_inputs"`
	CurrentOutputs   map[string]interface{} `json:"current_outputs"`
}

// promptID returns the prompt a message belongs to, "" when it does not say.
func (sm *WSStatusMessage) promptID() string {
	switch d := sm.Data.(type) {
	case *WSMessageDataExecutionStart:
		return d.PromptID
	case *WSMessageDataExecutionCached:
		return d.PromptID
	case *WSMessageDataExecuting:
		return d.PromptID
	case *WSMessageDataProgress:
		return d.PromptID
	case *WSMessageDataExecuted:
		return d.PromptID
	case *WSMessageDataExecutionSuccess:
		return d.PromptID
	case *WSMessageExecutionInterrupted:
		return d.PromptID
	case *WSMessageExecutionError:
		return d.PromptID
	}
	return ""
}
