package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotConnected is returned when an operation needs the websocket and it is down.
var ErrNotConnected = errors.New("comfy client: websocket not connected")

// APIError is a non-2xx response from the ComfyUI server.
type APIError struct {
	StatusCode int
	Endpoint   string
	// Err is set when the body carried a ComfyUI error, e.g.
	// {"error": {"type": "prompt_no_outputs", "message": "Prompt has no outputs", ...}, "node_errors": {}}
	Err        *ComfyError
	NodeErrors map[string]NodeErrors
	Body       string
}

func (e *APIError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "comfy server %s: status %d", e.Endpoint, e.StatusCode)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %s", e.Err.Message)
		if e.Err.Details != "" {
			fmt.Fprintf(&sb, " (%s)", e.Err.Details)
		}
	} else if e.Body != "" {
		fmt.Fprintf(&sb, ": %s", e.Body)
	}

	ids := make([]string, 0, len(e.NodeErrors))
	for id := range e.NodeErrors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, ne := range e.NodeErrors[id].Errors {
			fmt.Fprintf(&sb, "; node %s (%s): %s", id, e.NodeErrors[id].ClassType, ne.Message)
		}
	}
	return sb.String()
}

func newAPIError(endpoint string, status int, body []byte) *APIError {
	retv := &APIError{
		StatusCode: status,
		Endpoint:   endpoint,
		Body:       strings.TrimSpace(string(body)),
	}

	// error is either a ComfyError object or a bare string
	var perr struct {
		Error      json.RawMessage `json:"error"`
		NodeErrors json.RawMessage `json:"node_errors"`
	}
	if err := json.Unmarshal(body, &perr); err != nil || len(perr.Error) == 0 {
		return retv
	}
	// an empty node_errors is sometimes sent as []
	var nodeErrors map[string]NodeErrors
	if err := json.Unmarshal(perr.NodeErrors, &nodeErrors); err == nil && len(nodeErrors) != 0 {
		retv.NodeErrors = nodeErrors
	}

	ce := &ComfyError{}
	if err := json.Unmarshal(perr.Error, ce); err == nil {
		retv.Err = ce
		return retv
	}
	var msg string
	if err := json.Unmarshal(perr.Error, &msg); err == nil {
		retv.Err = &ComfyError{Type: "error", Message: msg}
	}
	return retv
}

// ExecutionError is reported when a queued prompt fails while running.
type ExecutionError struct {
	PromptID  string
	Exception PromptMessageStoppedException
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of prompt %s failed at node %s (%s): %s - %s",
		e.PromptID,
		e.Exception.NodeID,
		e.Exception.NodeType,
		e.Exception.ExceptionType,
		e.Exception.ExceptionMessage)
}

// ErrInterrupted is returned when a prompt was interrupted before it finished.
var ErrInterrupted = errors.New("comfy client: execution interrupted")
