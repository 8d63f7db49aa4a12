package client

import "encoding/json"

// DataOutput references a file produced by a node. It is also what /view
// takes to download that file.
type DataOutput struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
	Text      string `json:"-"` // for "text" type data output
}

// ImageContainer is a downloaded image together with its server reference.
type ImageContainer struct {
	Data  []byte
	Image DataOutput
}

// ImagesResponse maps node ids to the images they produced, in output order.
type ImagesResponse map[string][]ImageContainer

type SystemStats struct {
	System  System `json:"system"`
	Devices []GPU  `json:"devices"`
}

type System struct {
	OS             string `json:"os"`
	PythonVersion  string `json:"python_version"`
	EmbeddedPython bool   `json:"embedded_python"`
}

type GPU struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	Index            int    `json:"index"`
	VRAM_Total       int64  `json:"vram_total"`
	VRAM_Free        int64  `json:"vram_free"`
	Torch_VRAM_Total int64  `json:"torch_vram_total"`
	Torch_VRAM_Free  int64  `json:"torch_vram_free"`
}

type QueueExecInfo struct {
	ExecInfo struct {
		QueueRemaining int `json:"queue_remaining"`
	} `json:"exec_info"`
}

// QueueResponse is the /queue listing. Entries are the server's raw
// [number, prompt_id, prompt, extra_data, outputs] tuples.
type QueueResponse struct {
	Running []json.RawMessage `json:"queue_running"`
	Pending []json.RawMessage `json:"queue_pending"`
}

// QueuePromptResult is the successful POST /prompt response.
type QueuePromptResult struct {
	PromptID   string                `json:"prompt_id"`
	Number     int                   `json:"number"`
	NodeErrors map[string]NodeErrors `json:"node_errors"`
}

// ComfyError is the error shape ComfyUI uses throughout its API.
type ComfyError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details"`
	ExtraInfo map[string]interface{} `json:"extra_info"`
}

// NodeErrors lists the validation errors of one node.
type NodeErrors struct {
	Errors           []ComfyError `json:"errors"`
	DependentOutputs []string     `json:"dependent_outputs"`
	ClassType        string       `json:"class_type"`
}

// HistoryOutputs is what a node wrote during execution.
type HistoryOutputs struct {
	Images []DataOutput `json:"images,omitempty"`
	Gifs   []DataOutput `json:"gifs,omitempty"`
}

// HistoryStatus reports how a prompt finished.
type HistoryStatus struct {
	StatusStr string `json:"status_str"`
	Completed bool   `json:"completed"`
}

// HistoryEntry is one prompt in /history.
type HistoryEntry struct {
	// The prompt is stored as an array layed out like this:
	// [number, prompt_id, prompt, extra_data, outputs_to_execute]
	Prompt  []json.RawMessage         `json:"prompt"`
	Outputs map[string]HistoryOutputs `json:"outputs"`
	Status  HistoryStatus             `json:"status"`
}

// HistoryResult maps prompt ids to their history.
type HistoryResult map[string]HistoryEntry

type UploadImageResult struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// EditHistoryRequest is the POST /history body.
type EditHistoryRequest struct {
	Clear  bool     `json:"clear,omitempty"`
	Delete []string `json:"delete,omitempty"`
}

// FolderName is a model folder known to ComfyUI (folder_paths.py).
type FolderName string

const (
	FolderCheckpoints   FolderName = "checkpoints"
	FolderConfigs       FolderName = "configs"
	FolderLoras         FolderName = "loras"
	FolderVAE           FolderName = "vae"
	FolderClip          FolderName = "clip"
	FolderUnet          FolderName = "unet"
	FolderClipVision    FolderName = "clip_vision"
	FolderStyleModels   FolderName = "style_models"
	FolderEmbeddings    FolderName = "embeddings"
	FolderDiffusers     FolderName = "diffusers"
	FolderVAEApprox     FolderName = "vae_approx"
	FolderControlnet    FolderName = "controlnet"
	FolderGligen        FolderName = "gligen"
	FolderUpscaleModels FolderName = "upscale_models"
	FolderCustomNodes   FolderName = "custom_nodes"
	FolderHypernetworks FolderName = "hypernetworks"
)
