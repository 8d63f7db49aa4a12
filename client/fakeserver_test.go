package client

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/richinsley/comfyworkflow/graphapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPromptID = "ed986d60-2a27-4d28-8871-2fdb36582902"

// fakeComfy is a ComfyUI server good enough for a single prompt. Extra routes
// are registered on mux by the tests.
type fakeComfy struct {
	t        *testing.T
	mux      *http.ServeMux
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	conn      *websocket.Conn
	connected chan struct{}
	connOnce  sync.Once
	requests  []graphapi.PromptRequest

	// promptStatus and promptBody answer POST /prompt.
	promptStatus int
	promptBody   string
	// afterPrompt runs in its own goroutine once a prompt was accepted.
	afterPrompt func(f *fakeComfy)
}

func newFakeComfy(t *testing.T) *fakeComfy {
	t.Helper()
	f := &fakeComfy{
		t:            t,
		mux:          http.NewServeMux(),
		connected:    make(chan struct{}),
		promptStatus: http.StatusOK,
		promptBody:   `{"prompt_id": "` + testPromptID + `", "number": 1, "node_errors": {}}`,
	}

	f.mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("clientId") == "" {
			http.Error(w, "missing clientId", http.StatusBadRequest)
			return
		}
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		f.connOnce.Do(func() { close(f.connected) })
	})

	f.mux.HandleFunc("POST /prompt", func(w http.ResponseWriter, r *http.Request) {
		var req graphapi.PromptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.promptStatus)
		_, _ = w.Write([]byte(f.promptBody))
		if f.promptStatus == http.StatusOK && f.afterPrompt != nil {
			go f.afterPrompt(f)
		}
	})

	f.server = httptest.NewServer(f.mux)
	t.Cleanup(func() {
		f.closeWebSocket()
		f.server.Close()
	})
	return f
}

// client returns a ComfyClient pointed at the fake server.
func (f *fakeComfy) client(opts ...Option) *ComfyClient {
	f.t.Helper()
	u, err := url.Parse(f.server.URL)
	require.NoError(f.t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(f.t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(f.t, err)

	c := NewComfyClient(host, port, nil, append([]Option{WithRetry(0)}, opts...)...)
	f.t.Cleanup(func() { _ = c.Close() })
	return c
}

// send writes text messages to the connected websocket, in order.
func (f *fakeComfy) send(messages ...string) {
	select {
	case <-f.connected:
	case <-time.After(5 * time.Second):
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !assert.NotNil(f.t, f.conn, "no websocket connected") {
		return
	}
	for _, m := range messages {
		assert.NoError(f.t, f.conn.WriteMessage(websocket.TextMessage, []byte(m)))
	}
}

func (f *fakeComfy) closeWebSocket() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
}

func (f *fakeComfy) promptRequests() []graphapi.PromptRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]graphapi.PromptRequest(nil), f.requests...)
}

// handleJSON registers a route answering with a fixed JSON body.
func (f *fakeComfy) handleJSON(pattern, body string) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func wsMessage(msgType string, data map[string]interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{"type": msgType, "data": data})
	return string(b)
}

func executingMessage(node interface{}) string {
	return wsMessage("executing", map[string]interface{}{"node": node, "prompt_id": testPromptID})
}

func testPrompt(t *testing.T) *graphapi.RawPrompt {
	t.Helper()
	prompt, err := graphapi.NewRawPromptFromJSONString(`{
		"3": {"inputs": {"seed": 5, "model": ["4", 0]}, "class_type": "KSampler", "_meta": {"title": "INPUT_sampler"}},
		"4": {"inputs": {"ckpt_name": "base.safetensors"}, "class_type": "CheckpointLoaderSimple"},
		"9": {"inputs": {"images": ["3", 0]}, "class_type": "SaveImage", "_meta": {"title": "OUTPUT_final"}}
	}`)
	require.NoError(t, err)
	return prompt
}
