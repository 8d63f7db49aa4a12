package graphapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const objectInfoJSON = `{
	"KSampler": {
		"input": {
			"required": {
				"model": ["MODEL"],
				"seed": ["INT", {"default": 0, "min": 0}],
				"sampler_name": [["euler", "euler_ancestral"]],
				"cfg": ["FLOAT", {"default": 8.0}]
			},
			"optional": {
				"extra": ["STRING", {}]
			}
		},
		"output": ["LATENT"],
		"output_is_list": [false],
		"output_name": ["LATENT"],
		"name": "KSampler",
		"display_name": "KSampler",
		"description": "",
		"category": "sampling",
		"output_node": false
	},
	"SaveImage": {
		"input": {"required": {"images": ["IMAGE"]}, "hidden": {"prompt": "PROMPT"}},
		"output": [],
		"name": "SaveImage",
		"display_name": "Save Image",
		"category": "image",
		"output_node": true
	}
}`

func loadObjects(t *testing.T) *NodeObjects {
	t.Helper()
	objects := &NodeObjects{}
	require.NoError(t, json.Unmarshal([]byte(objectInfoJSON), &objects.Objects))
	return objects
}

func TestNodeObjectInputOrder(t *testing.T) {
	objects := loadObjects(t)
	sampler := objects.GetNodeObjectByName("KSampler")
	require.NotNil(t, sampler)
	assert.Equal(t, []string{"model", "seed", "sampler_name", "cfg", "extra"}, sampler.InputNames())
}

func TestNodeObjectInputType(t *testing.T) {
	sampler := loadObjects(t).GetNodeObjectByName("KSampler")
	require.NotNil(t, sampler)

	for input, want := range map[string]string{
		"model":        "MODEL",
		"seed":         "INT",
		"sampler_name": "COMBO",
		"extra":        "STRING",
	} {
		got, ok := sampler.InputType(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	_, ok := sampler.InputType("missing")
	assert.False(t, ok)
}

func TestNodeObjectsOutputAndMissingClasses(t *testing.T) {
	objects := loadObjects(t)
	assert.Equal(t, []string{"SaveImage"}, objects.OutputClasses())
	assert.Nil(t, objects.GetNodeObjectByName("Nope"))

	prompt, err := NewRawPromptFromJSONFile("testdata/txt2img_api.json")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CheckpointLoaderSimple",
		"CLIPTextEncode",
		"EmptyLatentImage",
		"VAEDecode",
		"PreviewImage",
	}, objects.MissingClasses(prompt))
}
