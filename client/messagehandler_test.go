package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessMessagesReportsError(t *testing.T) {
	qi := newQueueItem(testPrompt(t))
	qi.PromptID = "p"

	exception := &PromptMessageStoppedException{NodeID: "3", ExceptionMessage: "boom"}
	qi.send(PromptMessage{Type: "started", Message: &PromptMessageStarted{PromptID: "p"}})
	qi.send(PromptMessage{Type: "stopped", Message: &PromptMessageStopped{QueueItem: qi, Exception: exception}})
	qi.close()

	var order []string
	handlers := &MessageHandlers{
		OnStarted:  func(*PromptMessageStarted) { order = append(order, "started") },
		OnError:    func(*PromptMessageStoppedException) { order = append(order, "error") },
		OnStopped:  func(*PromptMessageStopped) { order = append(order, "stopped") },
		OnComplete: func() { order = append(order, "complete") },
	}
	err := qi.ProcessMessages(context.Background(), handlers)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "p", execErr.PromptID)
	assert.Equal(t, *exception, execErr.Exception)
	assert.Equal(t, []string{"started", "error", "stopped", "complete"}, order)
}

func TestProcessMessagesClosedChannel(t *testing.T) {
	qi := newQueueItem(nil)
	qi.PromptID = "p"
	qi.close()

	err := qi.ProcessMessages(context.Background(), nil)
	assert.ErrorContains(t, err, "message channel closed")
}

func TestProcessMessagesContextDone(t *testing.T) {
	qi := newQueueItem(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	completed := false
	err := qi.ProcessMessages(ctx, (&MessageHandlers{}).WithCompleteHandler(func() { completed = true }))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, completed)
}

func TestSendAfterAbandonDoesNotBlock(t *testing.T) {
	qi := newQueueItem(nil)
	for i := 0; i < cap(qi.Messages); i++ {
		qi.send(PromptMessage{Type: "progress", Message: &PromptMessageProgress{}})
	}
	qi.abandon()

	done := make(chan struct{})
	go func() {
		qi.send(PromptMessage{Type: "progress", Message: &PromptMessageProgress{}})
		qi.abandon()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked on an abandoned item")
	}
}

func TestNodeTitle(t *testing.T) {
	qi := newQueueItem(testPrompt(t))

	title, class := qi.nodeTitle("3")
	assert.Equal(t, "INPUT_sampler", title)
	assert.Equal(t, "KSampler", class)

	title, class = qi.nodeTitle("4")
	assert.Equal(t, "CheckpointLoaderSimple", title)
	assert.Equal(t, "CheckpointLoaderSimple", class)

	title, class = qi.nodeTitle("404")
	assert.Equal(t, "404", title)
	assert.Equal(t, "", class)

	title, _ = newQueueItem(nil).nodeTitle("1")
	assert.Equal(t, "1", title)
}

func TestDefaultMessageHandlers(t *testing.T) {
	h := DefaultMessageHandlers()
	assert.NotNil(t, h.OnStarted)
	assert.NotNil(t, h.OnExecuting)
	assert.NotNil(t, h.OnError)
	assert.NotNil(t, h.OnStopped)
	assert.Nil(t, h.OnProgress)

	h = h.WithProgressHandler(func(*PromptMessageProgress) {})
	assert.NotNil(t, h.OnProgress)
}
