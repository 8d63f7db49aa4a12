package graphapi

import (
	"encoding/json"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// NodeObjects is the decoded /object_info response, keyed by node class.
type NodeObjects struct {
	Objects map[string]*NodeObject
}

// NodeObject describes a node class as the server reports it.
type NodeObject struct {
	Input        NodeObjectInput `json:"input"`
	Output       []string        `json:"output"` // output type
	OutputIsList []bool          `json:"output_is_list"`
	OutputName   []string        `json:"output_name"`
	Name         string          `json:"name"`
	DisplayName  string          `json:"display_name"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	OutputNode   bool            `json:"output_node"`
}

// NodeObjectInput keeps input definitions in the order the server declares
// them, which is the order the UI lays out widgets in.
type NodeObjectInput struct {
	Required *orderedmap.OrderedMap[string, json.RawMessage] `json:"required,omitempty"`
	Optional *orderedmap.OrderedMap[string, json.RawMessage] `json:"optional,omitempty"`
	Hidden   map[string]json.RawMessage                      `json:"hidden,omitempty"`
}

// InputNames returns the required then optional input names in declaration order.
func (n *NodeObject) InputNames() []string {
	retv := make([]string, 0)
	for _, m := range []*orderedmap.OrderedMap[string, json.RawMessage]{n.Input.Required, n.Input.Optional} {
		if m == nil {
			continue
		}
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			retv = append(retv, pair.Key)
		}
	}
	return retv
}

// InputType returns the declared type of an input: the type name ("INT",
// "IMAGE", ...) or "COMBO" for a list of choices. ok is false when the class
// has no such input.
func (n *NodeObject) InputType(name string) (string, bool) {
	var def json.RawMessage
	found := false
	for _, m := range []*orderedmap.OrderedMap[string, json.RawMessage]{n.Input.Required, n.Input.Optional} {
		if m == nil {
			continue
		}
		if def, found = m.Get(name); found {
			break
		}
	}
	if !found {
		return "", false
	}

	// an input is declared as [type, {options}] where type is either a
	// string or an array of combo choices
	var parts []json.RawMessage
	if err := json.Unmarshal(def, &parts); err != nil || len(parts) == 0 {
		return "UNKNOWN", true
	}
	var typeName string
	if err := json.Unmarshal(parts[0], &typeName); err == nil {
		return typeName, true
	}
	var choices []interface{}
	if err := json.Unmarshal(parts[0], &choices); err == nil {
		return "COMBO", true
	}
	return "UNKNOWN", true
}

func (n *NodeObjects) GetNodeObjectByName(name string) *NodeObject {
	if n == nil {
		return nil
	}
	val, ok := n.Objects[name]
	if ok {
		return val
	}
	return nil
}

// OutputClasses returns the sorted names of the classes flagged as output nodes.
func (n *NodeObjects) OutputClasses() []string {
	retv := make([]string, 0)
	for name, o := range n.Objects {
		if o.OutputNode {
			retv = append(retv, name)
		}
	}
	sort.Strings(retv)
	return retv
}

// MissingClasses returns the class types used by prompt that the server does
// not know about, in prompt order and without duplicates.
func (n *NodeObjects) MissingClasses(prompt *RawPrompt) []string {
	seen := make(map[string]bool)
	retv := make([]string, 0)
	prompt.Each(func(_ string, node *PromptNode) bool {
		if n.GetNodeObjectByName(node.ClassType) == nil && !seen[node.ClassType] {
			seen[node.ClassType] = true
			retv = append(retv, node.ClassType)
		}
		return true
	})
	return retv
}
