package client

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketCallback receives the text messages of a WebSocketConnection.
type WebSocketCallback interface {
	OnMessage(message string)
	// OnDisconnect is called once when the read loop ends.
	OnDisconnect(err error)
}

// WebSocketConnection is a websocket that is dialed with retries and read by
// a background goroutine.
type WebSocketConnection struct {
	WebSocketURL string
	MaxRetry     int
	Callback     WebSocketCallback

	// Exponential backoff configuration
	BaseDelay time.Duration // The initial delay, e.g., 1 second
	MaxDelay  time.Duration // The maximum delay, e.g., 1 minute
	Dialer    *websocket.Dialer

	mu         sync.Mutex
	conn       *websocket.Conn
	retryCount int
	done       chan struct{}
}

// Connect dials the websocket, retrying up to MaxRetry times, and starts
// reading messages. It is a no-op when already connected.
func (w *WebSocketConnection) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		return nil
	}

	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	w.retryCount = 0
	for attempt := 1; ; attempt++ {
		conn, _, err := dialer.DialContext(ctx, w.WebSocketURL, nil)
		if err == nil {
			w.conn = conn
			w.done = make(chan struct{})
			go w.handleMessages(conn, w.done)
			return nil
		}
		slog.Error("Connection attempt failed", "url", w.WebSocketURL, "attempt", attempt, "error", err)

		if attempt > w.MaxRetry {
			return fmt.Errorf("websocket connect to %s failed after %d attempts: %w", w.WebSocketURL, attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.getReconnectDelay()):
		}
	}
}

// IsConnected reports whether the read loop is running.
func (w *WebSocketConnection) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

// Close closes the connection and waits for the read loop to exit.
func (w *WebSocketConnection) Close() error {
	w.mu.Lock()
	conn, done := w.conn, w.done
	w.mu.Unlock()
	if conn == nil {
		return nil
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := conn.Close()
	<-done
	return err
}

// handleMessages reads until the connection fails. Binary frames carry
// preview images and are skipped.
func (w *WebSocketConnection) handleMessages(conn *websocket.Conn, done chan struct{}) {
	var readErr error
	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if w.Callback != nil {
			w.Callback.OnMessage(string(message))
		}
	}

	if websocket.IsCloseError(readErr, websocket.CloseNormalClosure) {
		slog.Debug("websocket closed", "url", w.WebSocketURL)
	} else {
		slog.Warn("websocket read error", "url", w.WebSocketURL, "error", readErr)
	}

	conn.Close()
	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	w.mu.Unlock()

	if w.Callback != nil {
		w.Callback.OnDisconnect(readErr)
	}
	close(done)
}

// exponential backoff calculation
func (w *WebSocketConnection) getReconnectDelay() time.Duration {
	// BaseDelay * 2^(RetryCount), capped at MaxDelay
	delay := w.BaseDelay * time.Duration(math.Pow(2, float64(w.retryCount)))
	if w.MaxDelay > 0 && delay > w.MaxDelay {
		delay = w.MaxDelay
	}
	w.retryCount++
	return delay
}
