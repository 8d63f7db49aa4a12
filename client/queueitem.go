package client

import (
	"sync"

	"github.com/richinsley/comfyworkflow/graphapi"
)

// QueueItem is a prompt that was queued with a ComfyClient. Progress arrives
// on Messages until a "stopped" message, after which the channel is closed.
type QueueItem struct {
	PromptID   string                `json:"prompt_id"`
	Number     int                   `json:"number"`
	NodeErrors map[string]NodeErrors `json:"node_errors"`
	Messages   chan PromptMessage    `json:"-"`
	Prompt     *graphapi.RawPrompt   `json:"-"`

	closeOnce   sync.Once
	abandoned   chan struct{}
	abandonOnce sync.Once
}

func newQueueItem(prompt *graphapi.RawPrompt) *QueueItem {
	return &QueueItem{
		Prompt:    prompt,
		Messages:  make(chan PromptMessage, 64),
		abandoned: make(chan struct{}),
	}
}

// nodeTitle returns the title of a node for display, falling back to its class.
func (qi *QueueItem) nodeTitle(nodeID string) (string, string) {
	node, ok := qi.Prompt.Get(nodeID)
	if !ok || node == nil {
		return nodeID, ""
	}
	if t := node.Title(); t != "" {
		return t, node.ClassType
	}
	return node.ClassType, node.ClassType
}

// send delivers m unless the receiver has given up on the item.
func (qi *QueueItem) send(m PromptMessage) {
	select {
	case qi.Messages <- m:
	case <-qi.abandoned:
	}
}

func (qi *QueueItem) abandon() {
	qi.abandonOnce.Do(func() { close(qi.abandoned) })
}

func (qi *QueueItem) close() {
	qi.closeOnce.Do(func() { close(qi.Messages) })
}
