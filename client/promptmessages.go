package client

// PromptMessage is what a QueueItem receives on its Messages channel. Type
// is one of "started", "executing", "progress", "data" or "stopped" and
// Message points at the matching PromptMessage* struct. "stopped" is always
// the last message of an item.
type PromptMessage struct {
	Type    string
	Message interface{}
}

// PromptMessageStarted is sent when the server picks the prompt up.
type PromptMessageStarted struct {
	PromptID string `json:"prompt_id"`
}

// PromptMessageExecuting names the node the server moved on to. Title is
// the node's _meta.title, or its class when untitled.
type PromptMessageExecuting struct {
	NodeID string
	Title  string
}

// PromptMessageProgress reports Value of Max steps for a long running node.
type PromptMessageProgress struct {
	NodeID string
	Max    int
	Value  int
}

// PromptMessageData carries the outputs a node wrote, keyed by output kind
// ("images", "gifs", "text").
type PromptMessageData struct {
	NodeID string
	Data   map[string][]DataOutput
}

// PromptMessageStopped ends the stream. With neither Interrupted nor
// Exception set the prompt completed.
type PromptMessageStopped struct {
	QueueItem   *QueueItem
	Interrupted bool
	Exception   *PromptMessageStoppedException
}

// PromptMessageStoppedException describes the node that failed.
type PromptMessageStoppedException struct {
	NodeID           string
	NodeType         string
	NodeName         string
	ExceptionMessage string
	ExceptionType    string
	Traceback        []string
}

func (p *PromptMessage) ToPromptMessageStarted() *PromptMessageStarted {
	return p.Message.(*PromptMessageStarted)
}

func (p *PromptMessage) ToPromptMessageExecuting() *PromptMessageExecuting {
	return p.Message.(*PromptMessageExecuting)
}

func (p *PromptMessage) ToPromptMessageProgress() *PromptMessageProgress {
	return p.Message.(*PromptMessageProgress)
}

func (p *PromptMessage) ToPromptMessageData() *PromptMessageData {
	return p.Message.(*PromptMessageData)
}

func (p *PromptMessage) ToPromptMessageStopped() *PromptMessageStopped {
	return p.Message.(*PromptMessageStopped)
}
