package graphapi

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// PromptRequest is the data that is enqueued to an instance of ComfyUI
type PromptRequest struct {
	ClientID  string           `json:"client_id"`
	Prompt    *RawPrompt       `json:"prompt"`
	ExtraData *PromptExtraData `json:"extra_data,omitempty"`
}

// PromptExtraData is passed through to the server untouched. ComfyUI embeds
// extra_pnginfo into the PNG files it saves.
type PromptExtraData struct {
	PngInfo map[string]interface{} `json:"extra_pnginfo,omitempty"`
}

// NodeMeta is the free-form metadata ComfyUI attaches to API-format nodes.
// Only the title is used; it is what a user typed as the node's name.
type NodeMeta struct {
	Title string `json:"title,omitempty"`
}

// PromptNode is a single node of an API-format prompt.
type PromptNode struct {
	Inputs    map[string]InputValue `json:"inputs"`
	ClassType string                `json:"class_type"`
	Meta      *NodeMeta             `json:"_meta,omitempty"`
}

// Title returns the node's metadata title, or "" when it has none.
func (n *PromptNode) Title() string {
	if n == nil || n.Meta == nil {
		return ""
	}
	return n.Meta.Title
}

// SetInput sets the named input, allocating the input map if needed.
func (n *PromptNode) SetInput(name string, v InputValue) {
	if n.Inputs == nil {
		n.Inputs = make(map[string]InputValue)
	}
	n.Inputs[name] = v
}

// RawPrompt is an API-format prompt: node ids mapped to nodes. Iteration
// follows insertion order, which for a decoded prompt is document order.
type RawPrompt struct {
	nodes *orderedmap.OrderedMap[string, *PromptNode]
}

func NewRawPrompt() *RawPrompt {
	return &RawPrompt{nodes: orderedmap.New[string, *PromptNode]()}
}

func (p *RawPrompt) init() {
	if p.nodes == nil {
		p.nodes = orderedmap.New[string, *PromptNode]()
	}
}

// Set adds or replaces the node with the given id. A replaced node keeps its
// original position.
func (p *RawPrompt) Set(id string, node *PromptNode) {
	p.init()
	p.nodes.Set(id, node)
}

func (p *RawPrompt) Get(id string) (*PromptNode, bool) {
	if p == nil || p.nodes == nil {
		return nil, false
	}
	return p.nodes.Get(id)
}

func (p *RawPrompt) Delete(id string) bool {
	if p == nil || p.nodes == nil {
		return false
	}
	_, present := p.nodes.Delete(id)
	return present
}

func (p *RawPrompt) Len() int {
	if p == nil || p.nodes == nil {
		return 0
	}
	return p.nodes.Len()
}

// NodeIDs returns the node ids in iteration order.
func (p *RawPrompt) NodeIDs() []string {
	retv := make([]string, 0, p.Len())
	p.Each(func(id string, _ *PromptNode) bool {
		retv = append(retv, id)
		return true
	})
	return retv
}

// Each calls fn for every node in iteration order until fn returns false.
func (p *RawPrompt) Each(fn func(id string, node *PromptNode) bool) {
	if p == nil || p.nodes == nil {
		return
	}
	for pair := p.nodes.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Clone returns a deep copy of the prompt.
func (p *RawPrompt) Clone() (*RawPrompt, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	retv := NewRawPrompt()
	if err := json.Unmarshal(data, retv); err != nil {
		return nil, err
	}
	return retv, nil
}

func (p *RawPrompt) MarshalJSON() ([]byte, error) {
	if p == nil || p.nodes == nil {
		return []byte("{}"), nil
	}
	return p.nodes.MarshalJSON()
}

func (p *RawPrompt) UnmarshalJSON(b []byte) error {
	nodes := orderedmap.New[string, *PromptNode]()
	if err := nodes.UnmarshalJSON(b); err != nil {
		return err
	}

	// "id": null carries nothing we can address
	for pair := nodes.Oldest(); pair != nil; {
		next := pair.Next()
		if pair.Value == nil {
			nodes.Delete(pair.Key)
		}
		pair = next
	}
	p.nodes = nodes
	return nil
}
