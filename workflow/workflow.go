// Package workflow indexes an API-format prompt by the titles of its nodes.
//
// ComfyUI addresses nodes by numeric ids that change whenever a workflow is
// edited. Users can instead title the nodes they care about: a node titled
// "INPUT_prompt" becomes the input "prompt", a node titled "OUTPUT_final"
// becomes the output "final". A Workflow finds those nodes once, when it is
// created, and lets callers set inputs and collect rendered images by name.
//
// The role tables are a snapshot. Nodes added to or removed from the prompt
// after New are not reflected in InputNode, OutputNodeID or the outputs that
// GetAllOutputImages collects. The name searches (FindNodeIDsByName and
// friends) always scan the prompt as it is.
//
// A Workflow is not modified by any of its methods except SetInput, which
// writes to a node of the prompt. Concurrent reads are safe as long as
// nothing writes to the prompt at the same time.
package workflow

import (
	"context"
	"errors"

	"github.com/richinsley/comfyworkflow/client"
	"github.com/richinsley/comfyworkflow/graphapi"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	DefaultInputNodePrefix  = "INPUT_"
	DefaultOutputNodePrefix = "OUTPUT_"
)

// ErrUnknownInput is returned by SetInput for a name that is not an input node.
var ErrUnknownInput = errors.New("workflow: unknown input node")

// ImageRenderer executes a prompt and returns the images every node produced,
// keyed by node id. *client.ComfyClient is the production implementation.
type ImageRenderer interface {
	GetImages(ctx context.Context, prompt *graphapi.RawPrompt) (client.ImagesResponse, error)
}

// Workflow is a prompt together with its named input and output nodes.
type Workflow struct {
	prompt       *graphapi.RawPrompt
	inputPrefix  string
	outputPrefix string
	observer     Observer

	inputNodes          *orderedmap.OrderedMap[string, *graphapi.PromptNode]
	outputNodeIDsByName *orderedmap.OrderedMap[string, string]
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithInputPrefix sets the title prefix that marks input nodes.
func WithInputPrefix(prefix string) Option {
	return func(w *Workflow) { w.inputPrefix = prefix }
}

// WithOutputPrefix sets the title prefix that marks output nodes.
func WithOutputPrefix(prefix string) Option {
	return func(w *Workflow) { w.outputPrefix = prefix }
}

// WithObserver sets the receiver of lookup diagnostics. The default logs them
// with slog.
func WithObserver(o Observer) Option {
	return func(w *Workflow) { w.observer = o }
}

// New indexes prompt. A nil prompt is treated as an empty one.
//
// A titled node whose title contains the input prefix (ignoring case) is an
// input named after the title with the prefix removed. Otherwise, if it
// contains the output prefix, it is an output. When two nodes resolve to the
// same name the later one in prompt order wins.
func New(prompt *graphapi.RawPrompt, opts ...Option) *Workflow {
	if prompt == nil {
		prompt = graphapi.NewRawPrompt()
	}
	w := &Workflow{
		prompt:              prompt,
		inputPrefix:         DefaultInputNodePrefix,
		outputPrefix:        DefaultOutputNodePrefix,
		observer:            LogObserver{},
		inputNodes:          orderedmap.New[string, *graphapi.PromptNode](),
		outputNodeIDsByName: orderedmap.New[string, string](),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.observer == nil {
		w.observer = LogObserver{}
	}

	prompt.Each(func(id string, node *graphapi.PromptNode) bool {
		title := node.Title()
		if MatchesQuery(title, w.inputPrefix, false, false) {
			w.inputNodes.Set(stripPrefix(title, w.inputPrefix), node)
		} else if MatchesQuery(title, w.outputPrefix, false, false) {
			w.outputNodeIDsByName.Set(stripPrefix(title, w.outputPrefix), id)
		}
		return true
	})
	return w
}

// Prompt returns the underlying prompt.
func (w *Workflow) Prompt() *graphapi.RawPrompt { return w.prompt }

func (w *Workflow) InputPrefix() string { return w.inputPrefix }

func (w *Workflow) OutputPrefix() string { return w.outputPrefix }

// InputNode returns the input node registered under name.
func (w *Workflow) InputNode(name string) (*graphapi.PromptNode, bool) {
	return w.inputNodes.Get(name)
}

// InputNames returns the input names in the order they were first seen.
func (w *Workflow) InputNames() []string {
	retv := make([]string, 0, w.inputNodes.Len())
	for pair := w.inputNodes.Oldest(); pair != nil; pair = pair.Next() {
		retv = append(retv, pair.Key)
	}
	return retv
}

// SetInput sets the input parameter param of the input node name.
func (w *Workflow) SetInput(name, param string, v graphapi.InputValue) error {
	node, ok := w.inputNodes.Get(name)
	if !ok {
		return ErrUnknownInput
	}
	node.SetInput(param, v)
	return nil
}

// OutputNodeID returns the node id registered for the output name.
func (w *Workflow) OutputNodeID(name string) (string, bool) {
	return w.outputNodeIDsByName.Get(name)
}

// OutputNames returns the output names in the order they were first seen.
func (w *Workflow) OutputNames() []string {
	retv := make([]string, 0, w.outputNodeIDsByName.Len())
	for pair := w.outputNodeIDsByName.Oldest(); pair != nil; pair = pair.Next() {
		retv = append(retv, pair.Key)
	}
	return retv
}

// FindNodeIDsByName returns the ids of every node whose title matches name,
// in prompt order. Matching is exact and case-insensitive by default.
func (w *Workflow) FindNodeIDsByName(name string, opts ...MatchOption) []string {
	o := newMatchOptions(opts)
	retv := make([]string, 0)
	w.prompt.Each(func(id string, node *graphapi.PromptNode) bool {
		if MatchesQuery(node.Title(), name, o.exact, o.caseSensitive) {
			retv = append(retv, id)
		}
		return true
	})
	return retv
}

// FindNodeIDByName returns the first node id whose title matches name. When
// several nodes match, the observer is told and the first one is returned.
func (w *Workflow) FindNodeIDByName(name string, opts ...MatchOption) (string, bool) {
	ids := w.FindNodeIDsByName(name, opts...)
	if len(ids) == 0 {
		return "", false
	}
	if len(ids) > 1 {
		w.observer.AmbiguousMatch(AmbiguousMatch{Query: name, NodeIDs: ids, Chosen: ids[0]})
	}
	return ids[0], true
}

// FindNodeByName returns the node FindNodeIDByName resolves name to.
func (w *Workflow) FindNodeByName(name string, opts ...MatchOption) (*graphapi.PromptNode, bool) {
	id, ok := w.FindNodeIDByName(name, opts...)
	if !ok {
		return nil, false
	}
	return w.prompt.Get(id)
}

// GetImagesForOutput picks the images of the output name out of response.
// ok is false when name is not an output or its node produced nothing.
func (w *Workflow) GetImagesForOutput(name string, response client.ImagesResponse) ([]client.ImageContainer, bool) {
	id, ok := w.outputNodeIDsByName.Get(name)
	if !ok {
		return nil, false
	}
	images, ok := response[id]
	return images, ok
}

// GetAllOutputImages renders the prompt once and returns the images of every
// output by name. Outputs that produced nothing are left out. An error from
// the renderer is returned as is.
func (w *Workflow) GetAllOutputImages(ctx context.Context, renderer ImageRenderer) (map[string][]client.ImageContainer, error) {
	response, err := renderer.GetImages(ctx, w.prompt)
	if err != nil {
		return nil, err
	}

	retv := make(map[string][]client.ImageContainer)
	for pair := w.outputNodeIDsByName.Oldest(); pair != nil; pair = pair.Next() {
		if images, ok := w.GetImagesForOutput(pair.Key, response); ok {
			retv[pair.Key] = images
		}
	}
	return retv, nil
}
