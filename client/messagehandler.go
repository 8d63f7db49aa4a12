package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/richinsley/comfyworkflow/graphapi"
)

// MessageHandlers receives the messages of a QueueItem by type. A nil field
// drops messages of that type.
type MessageHandlers struct {
	OnStarted   func(*PromptMessageStarted)
	OnExecuting func(*PromptMessageExecuting)
	OnProgress  func(*PromptMessageProgress)
	OnData      func(*PromptMessageData)

	// OnError sees the exception of a failed prompt, before OnStopped.
	OnError func(*PromptMessageStoppedException)
	// OnStopped sees the final message, whatever the outcome.
	OnStopped func(*PromptMessageStopped)

	// OnComplete runs when ProcessMessages returns, including on ctx expiry.
	OnComplete func()
}

// DefaultMessageHandlers logs the lifecycle of a prompt with slog. Progress
// is not logged.
func DefaultMessageHandlers() *MessageHandlers {
	return &MessageHandlers{
		OnStarted: func(msg *PromptMessageStarted) {
			slog.Info("Execution started", "prompt_id", msg.PromptID)
		},
		OnExecuting: func(msg *PromptMessageExecuting) {
			slog.Info("Executing node", "node_id", msg.NodeID, "title", msg.Title)
		},
		OnError: func(e *PromptMessageStoppedException) {
			slog.Error("Execution error",
				"node_id", e.NodeID,
				"node_type", e.NodeType,
				"error", e.ExceptionMessage,
			)
		},
		OnStopped: func(msg *PromptMessageStopped) {
			switch {
			case msg.Exception != nil:
			case msg.Interrupted:
				slog.Warn("Execution interrupted")
			default:
				slog.Info("Execution completed successfully")
			}
		},
	}
}

func (h *MessageHandlers) WithStartedHandler(fn func(*PromptMessageStarted)) *MessageHandlers {
	h.OnStarted = fn
	return h
}

func (h *MessageHandlers) WithExecutingHandler(fn func(*PromptMessageExecuting)) *MessageHandlers {
	h.OnExecuting = fn
	return h
}

func (h *MessageHandlers) WithProgressHandler(fn func(*PromptMessageProgress)) *MessageHandlers {
	h.OnProgress = fn
	return h
}

func (h *MessageHandlers) WithDataHandler(fn func(*PromptMessageData)) *MessageHandlers {
	h.OnData = fn
	return h
}

func (h *MessageHandlers) WithStoppedHandler(fn func(*PromptMessageStopped)) *MessageHandlers {
	h.OnStopped = fn
	return h
}

func (h *MessageHandlers) WithErrorHandler(fn func(*PromptMessageStoppedException)) *MessageHandlers {
	h.OnError = fn
	return h
}

func (h *MessageHandlers) WithCompleteHandler(fn func()) *MessageHandlers {
	h.OnComplete = fn
	return h
}

// dispatch hands msg to its handler. done is set by the final message, err
// describes how the prompt ended.
func (h *MessageHandlers) dispatch(promptID string, msg PromptMessage) (done bool, err error) {
	switch msg.Type {
	case "started":
		if h.OnStarted != nil {
			h.OnStarted(msg.ToPromptMessageStarted())
		}
	case "executing":
		if h.OnExecuting != nil {
			h.OnExecuting(msg.ToPromptMessageExecuting())
		}
	case "progress":
		if h.OnProgress != nil {
			h.OnProgress(msg.ToPromptMessageProgress())
		}
	case "data":
		if h.OnData != nil {
			h.OnData(msg.ToPromptMessageData())
		}
	case "stopped":
		stopped := msg.ToPromptMessageStopped()
		switch {
		case stopped.Exception != nil:
			if h.OnError != nil {
				h.OnError(stopped.Exception)
			}
			err = &ExecutionError{PromptID: promptID, Exception: *stopped.Exception}
		case stopped.Interrupted:
			err = ErrInterrupted
		}
		if h.OnStopped != nil {
			h.OnStopped(stopped)
		}
		return true, err
	default:
		slog.Warn("Unknown message type received", "type", msg.Type)
	}
	return false, nil
}

// ProcessMessages drains the item's messages into handlers (which may be nil)
// until the prompt stops or ctx is done. A failed prompt returns an
// *ExecutionError and an interrupted one ErrInterrupted.
func (qi *QueueItem) ProcessMessages(ctx context.Context, handlers *MessageHandlers) error {
	if handlers == nil {
		handlers = &MessageHandlers{}
	}
	if handlers.OnComplete != nil {
		defer handlers.OnComplete()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-qi.Messages:
			if !ok {
				return fmt.Errorf("prompt %s: message channel closed before execution stopped", qi.PromptID)
			}
			if done, err := handlers.dispatch(qi.PromptID, msg); done {
				return err
			}
		}
	}
}

// QueuePromptAndProcess queues prompt and runs ProcessMessages on it. The
// item is abandoned if ctx ends first.
//
//	err := c.QueuePromptAndProcess(ctx, prompt,
//	    client.DefaultMessageHandlers().
//	        WithDataHandler(func(msg *client.PromptMessageData) {
//	            // handle output data
//	        }),
//	)
func (c *ComfyClient) QueuePromptAndProcess(ctx context.Context, prompt *graphapi.RawPrompt, handlers *MessageHandlers) error {
	item, err := c.QueuePrompt(ctx, prompt)
	if err != nil {
		return fmt.Errorf("failed to queue prompt: %w", err)
	}

	err = item.ProcessMessages(ctx, handlers)
	if ctx.Err() != nil {
		c.abandon(item)
	}
	return err
}
