package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/richinsley/comfyworkflow/graphapi"
)

type QueuedItemStoppedReason string

const (
	QueuedItemStoppedReasonFinished    QueuedItemStoppedReason = "finished"
	QueuedItemStoppedReasonInterrupted QueuedItemStoppedReason = "interrupted"
	QueuedItemStoppedReasonError       QueuedItemStoppedReason = "error"
)

type ComfyClientCallbacks struct {
	ClientQueueCountChanged func(*ComfyClient, int)
	QueuedItemStarted       func(*ComfyClient, *QueueItem)
	QueuedItemStopped       func(*ComfyClient, *QueueItem, QueuedItemStoppedReason)
	QueuedItemDataAvailable func(*ComfyClient, *QueueItem, *PromptMessageData)
}

// ComfyClient talks to one ComfyUI server over HTTP and its websocket. It
// tracks the prompts it queued and streams their progress to QueueItems.
type ComfyClient struct {
	serverBaseAddress string
	serverAddress     string
	serverPort        int
	protocol          string
	clientid          string
	callbacks         *ComfyClientCallbacks
	timeout           time.Duration
	retry             int
	httpclient        *http.Client
	metrics           *Metrics
	webSocket         *WebSocketConnection
	nodeobjects       *graphapi.NodeObjects

	// dispatchMu is held while a prompt is posted and while a websocket
	// message is dispatched, so messages about a new prompt cannot be
	// dispatched before its QueueItem is registered.
	dispatchMu sync.Mutex

	mu                    sync.Mutex
	queueditems           map[string]*QueueItem
	queuecount            int
	lastProcessedPromptID string
}

// Option configures a ComfyClient.
type Option func(*ComfyClient)

// WithProtocol selects "http" (the default) or "https". The websocket uses
// ws or wss to match.
func WithProtocol(protocol string) Option {
	return func(c *ComfyClient) { c.protocol = protocol }
}

// WithHTTPClient replaces the http.Client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ComfyClient) { c.httpclient = hc }
}

// WithTimeout bounds each websocket dial attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *ComfyClient) { c.timeout = d }
}

// WithRetry sets how many times a failed websocket dial is retried.
func WithRetry(retry int) Option {
	return func(c *ComfyClient) { c.retry = retry }
}

// WithMetrics reports requests, renders and websocket traffic to m.
func WithMetrics(m *Metrics) Option {
	return func(c *ComfyClient) { c.metrics = m }
}

// NewComfyClient returns a client for serverAddress:serverPort. Nothing is
// dialed until Init, Connect or the first operation that needs the websocket.
func NewComfyClient(serverAddress string, serverPort int, callbacks *ComfyClientCallbacks, opts ...Option) *ComfyClient {
	c := &ComfyClient{
		serverBaseAddress: serverAddress + ":" + strconv.Itoa(serverPort),
		serverAddress:     serverAddress,
		serverPort:        serverPort,
		protocol:          "http",
		clientid:          uuid.New().String(),
		callbacks:         callbacks,
		retry:             3,
		httpclient:        &http.Client{},
		queueditems:       make(map[string]*QueueItem),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.webSocket = &WebSocketConnection{
		WebSocketURL: c.wsURL(),
		MaxRetry:     c.retry,
		Callback:     c,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: c.timeout,
		},
	}
	return c
}

func (c *ComfyClient) baseURL() string {
	return c.protocol + "://" + c.serverBaseAddress
}

func (c *ComfyClient) wsURL() string {
	scheme := "ws"
	if c.protocol == "https" {
		scheme = "wss"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     c.serverBaseAddress,
		Path:     "/ws",
		RawQuery: url.Values{"clientId": {c.clientid}}.Encode(),
	}
	return u.String()
}

// ClientID is the id this client registers on the websocket.
func (c *ComfyClient) ClientID() string {
	return c.clientid
}

// HttpClient returns the http.Client used for requests.
func (c *ComfyClient) HttpClient() *http.Client {
	return c.httpclient
}

// SetHttpClient replaces the http.Client used for requests.
func (c *ComfyClient) SetHttpClient(client *http.Client) {
	c.httpclient = client
}

// IsInitialized reports whether the websocket is connected.
func (c *ComfyClient) IsInitialized() bool {
	return c.webSocket.IsConnected()
}

// Connect opens the websocket if it is not open already.
func (c *ComfyClient) Connect(ctx context.Context) error {
	return c.webSocket.Connect(ctx)
}

// CheckConnection reconnects the websocket if it has dropped.
func (c *ComfyClient) CheckConnection(ctx context.Context) error {
	if c.IsInitialized() {
		return nil
	}
	return c.Connect(ctx)
}

// Init connects the websocket and fetches the server's node classes.
func (c *ComfyClient) Init(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	objects, err := c.GetObjectInfos(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.nodeobjects = objects
	c.mu.Unlock()
	return nil
}

// NodeObjects returns the node classes fetched by Init, nil before.
func (c *ComfyClient) NodeObjects() *graphapi.NodeObjects {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodeobjects
}

// Close closes the websocket. Prompts still running are reported as stopped.
func (c *ComfyClient) Close() error {
	return c.webSocket.Close()
}

// QueueCount returns the last queue length the server reported.
func (c *ComfyClient) QueueCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queuecount
}

// GetQueuedItem returns the pending item for promptID, or nil once the
// prompt has stopped or was never queued here.
func (c *ComfyClient) GetQueuedItem(promptID string) *QueueItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueditems[promptID]
}

// abandon stops delivering messages to qi.
func (c *ComfyClient) abandon(qi *QueueItem) {
	c.mu.Lock()
	if c.queueditems[qi.PromptID] == qi {
		delete(c.queueditems, qi.PromptID)
	}
	c.mu.Unlock()
	qi.abandon()
}

// finish removes qi from the queue and delivers its final message. No other
// messages will be sent to the channel after this.
func (c *ComfyClient) finish(qi *QueueItem, reason QueuedItemStoppedReason, stopped *PromptMessageStopped) {
	c.mu.Lock()
	delete(c.queueditems, qi.PromptID)
	c.mu.Unlock()

	if c.callbacks != nil && c.callbacks.QueuedItemStopped != nil {
		c.callbacks.QueuedItemStopped(c, qi, reason)
	}
	qi.send(PromptMessage{Type: "stopped", Message: stopped})
	qi.close()
}

// OnMessage decodes one websocket message and routes it to the QueueItem it
// concerns. Messages for prompts this client did not queue are dropped.
func (c *ComfyClient) OnMessage(msg string) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	message := &WSStatusMessage{}
	if err := json.Unmarshal([]byte(msg), message); err != nil {
		slog.Error("Deserializing Status Message:", "error", err)
		return
	}
	c.metrics.observeMessage(message.Type)

	switch data := message.Data.(type) {
	case nil:
		slog.Debug("Unhandled message type", "type", message.Type)
	case *WSMessageDataStatus:
		c.setQueueCount(data.Status.ExecInfo.QueueRemaining)
	default:
		if qi := c.itemFor(message); qi != nil {
			c.dispatch(qi, message)
		}
	}
}

func (c *ComfyClient) setQueueCount(count int) {
	c.mu.Lock()
	c.queuecount = count
	c.mu.Unlock()
	if c.callbacks != nil && c.callbacks.ClientQueueCountChanged != nil {
		c.callbacks.ClientQueueCountChanged(c, count)
	}
}

// itemFor finds the queued item a message belongs to. Older servers omit the
// prompt id on progress messages, those go to the prompt that started last.
func (c *ComfyClient) itemFor(message *WSStatusMessage) *QueueItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	promptID := message.promptID()
	if message.Type == "execution_start" {
		c.lastProcessedPromptID = promptID
	}
	if promptID == "" {
		promptID = c.lastProcessedPromptID
	}
	return c.queueditems[promptID]
}

func (c *ComfyClient) dispatch(qi *QueueItem, message *WSStatusMessage) {
	switch data := message.Data.(type) {
	case *WSMessageDataExecutionStart:
		if c.callbacks != nil && c.callbacks.QueuedItemStarted != nil {
			c.callbacks.QueuedItemStarted(c, qi)
		}
		qi.send(PromptMessage{Type: "started", Message: &PromptMessageStarted{PromptID: qi.PromptID}})

	case *WSMessageDataExecuting:
		if data.Node == nil {
			c.finish(qi, QueuedItemStoppedReasonFinished, &PromptMessageStopped{QueueItem: qi})
			return
		}
		title, _ := qi.nodeTitle(*data.Node)
		qi.send(PromptMessage{Type: "executing", Message: &PromptMessageExecuting{NodeID: *data.Node, Title: title}})

	case *WSMessageDataProgress:
		qi.send(PromptMessage{Type: "progress", Message: &PromptMessageProgress{
			NodeID: data.Node,
			Value:  data.Value,
			Max:    data.Max,
		}})

	case *WSMessageDataExecuted:
		out := &PromptMessageData{NodeID: data.Node, Data: data.Output}
		if c.callbacks != nil && c.callbacks.QueuedItemDataAvailable != nil {
			c.callbacks.QueuedItemDataAvailable(c, qi, out)
		}
		qi.send(PromptMessage{Type: "data", Message: out})

	case *WSMessageDataExecutionSuccess:
		// sent before the server stores the history; the prompt ends with
		// "executing" on a nil node

	case *WSMessageExecutionInterrupted:
		c.finish(qi, QueuedItemStoppedReasonInterrupted, &PromptMessageStopped{QueueItem: qi, Interrupted: true})

	case *WSMessageExecutionError:
		nodeName, _ := qi.nodeTitle(data.Node)
		c.finish(qi, QueuedItemStoppedReasonError, &PromptMessageStopped{
			QueueItem: qi,
			Exception: &PromptMessageStoppedException{
				NodeID:           data.Node,
				NodeType:         data.NodeType,
				NodeName:         nodeName,
				ExceptionMessage: data.ExceptionMessage,
				ExceptionType:    data.ExceptionType,
				Traceback:        data.Traceback,
			},
		})
	}
}

// OnDisconnect stops every queued item; their results can no longer be observed.
func (c *ComfyClient) OnDisconnect(err error) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	if err == nil {
		err = errors.New("connection closed")
	}

	c.mu.Lock()
	items := make([]*QueueItem, 0, len(c.queueditems))
	for _, qi := range c.queueditems {
		items = append(items, qi)
	}
	c.mu.Unlock()

	for _, qi := range items {
		c.finish(qi, QueuedItemStoppedReasonError, &PromptMessageStopped{
			QueueItem: qi,
			Exception: &PromptMessageStoppedException{
				ExceptionType:    "ConnectionClosed",
				ExceptionMessage: err.Error(),
			},
		})
	}
}
