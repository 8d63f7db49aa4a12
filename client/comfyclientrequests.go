package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/richinsley/comfyworkflow/graphapi"
)

// do sends req and returns the body of a 2xx response. route labels the
// request in metrics and errors with its aiohttp pattern, so
// /history/{prompt_id} counts as one route however many prompts are fetched.
func (c *ComfyClient) do(req *http.Request, route string) ([]byte, error) {
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, route, err)
	}
	defer resp.Body.Close()
	c.metrics.observeRequest(route, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", route, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(route, resp.StatusCode, body)
	}
	return body, nil
}

func (c *ComfyClient) get(ctx context.Context, route, path string, query url.Values) ([]byte, error) {
	u := c.baseURL() + path
	if len(query) != 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, route)
}

func (c *ComfyClient) getJSON(ctx context.Context, route, path string, query url.Values, v interface{}) error {
	body, err := c.get(ctx, route, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s response: %w", route, err)
	}
	return nil
}

func (c *ComfyClient) postJSON(ctx context.Context, route string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+route, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, route)
}

// GetSystemStats describes the server host and its devices.
func (c *ComfyClient) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	retv := &SystemStats{}
	if err := c.getJSON(ctx, "/system_stats", "/system_stats", nil, retv); err != nil {
		return nil, err
	}
	return retv, nil
}

// GetEmbeddings lists the embedding names the server can load.
func (c *ComfyClient) GetEmbeddings(ctx context.Context) ([]string, error) {
	retv := make([]string, 0)
	if err := c.getJSON(ctx, "/embeddings", "/embeddings", nil, &retv); err != nil {
		return nil, err
	}
	return retv, nil
}

// GetExtensions lists the web extension scripts the server serves.
func (c *ComfyClient) GetExtensions(ctx context.Context) ([]string, error) {
	retv := make([]string, 0)
	if err := c.getJSON(ctx, "/extensions", "/extensions", nil, &retv); err != nil {
		return nil, err
	}
	return retv, nil
}

func (c *ComfyClient) GetQueueExecutionInfo(ctx context.Context) (*QueueExecInfo, error) {
	retv := &QueueExecInfo{}
	if err := c.getJSON(ctx, "/prompt", "/prompt", nil, retv); err != nil {
		return nil, err
	}
	return retv, nil
}

func (c *ComfyClient) GetQueue(ctx context.Context) (*QueueResponse, error) {
	retv := &QueueResponse{}
	if err := c.getJSON(ctx, "/queue", "/queue", nil, retv); err != nil {
		return nil, err
	}
	return retv, nil
}

func (c *ComfyClient) GetObjectInfos(ctx context.Context) (*graphapi.NodeObjects, error) {
	result := &graphapi.NodeObjects{}
	if err := c.getJSON(ctx, "/object_info", "/object_info", nil, &result.Objects); err != nil {
		return nil, err
	}
	return result, nil
}

// GetObjectInfo retrieves the description of a single node class.
func (c *ComfyClient) GetObjectInfo(ctx context.Context, nodeClass string) (*graphapi.NodeObject, error) {
	objects := make(map[string]*graphapi.NodeObject)
	path := "/object_info/" + url.PathEscape(nodeClass)
	if err := c.getJSON(ctx, "/object_info/{node_class}", path, nil, &objects); err != nil {
		return nil, err
	}
	retv, ok := objects[nodeClass]
	if !ok {
		return nil, fmt.Errorf("object info for %q not found", nodeClass)
	}
	return retv, nil
}

// GetHistory returns the history of a single prompt. The result is empty
// while the prompt is still queued or running.
func (c *ComfyClient) GetHistory(ctx context.Context, promptID string) (HistoryResult, error) {
	retv := make(HistoryResult)
	path := "/history/" + url.PathEscape(promptID)
	if err := c.getJSON(ctx, "/history/{prompt_id}", path, nil, &retv); err != nil {
		return nil, err
	}
	return retv, nil
}

// GetHistories returns the prompt history, limited to maxItems entries when maxItems > 0.
func (c *ComfyClient) GetHistories(ctx context.Context, maxItems int) (HistoryResult, error) {
	var query url.Values
	if maxItems > 0 {
		query = url.Values{"max_items": {strconv.Itoa(maxItems)}}
	}
	retv := make(HistoryResult)
	if err := c.getJSON(ctx, "/history", "/history", query, &retv); err != nil {
		return nil, err
	}
	return retv, nil
}

func (c *ComfyClient) EditHistory(ctx context.Context, req EditHistoryRequest) error {
	_, err := c.postJSON(ctx, "/history", req)
	return err
}

func (c *ComfyClient) EraseHistory(ctx context.Context) error {
	return c.EditHistory(ctx, EditHistoryRequest{Clear: true})
}

func (c *ComfyClient) EraseHistoryItem(ctx context.Context, promptID string) error {
	return c.EditHistory(ctx, EditHistoryRequest{Delete: []string{promptID}})
}

// GetViewMetadata returns the __metadata__ header of a safetensors model.
func (c *ComfyClient) GetViewMetadata(ctx context.Context, folder FolderName, file string) (map[string]interface{}, error) {
	retv := make(map[string]interface{})
	path := "/view_metadata/" + url.PathEscape(string(folder))
	query := url.Values{"filename": {file}}
	if err := c.getJSON(ctx, "/view_metadata/{folder_name}", path, query, &retv); err != nil {
		return nil, err
	}
	return retv, nil
}

// GetImage downloads a file a node produced.
func (c *ComfyClient) GetImage(ctx context.Context, image DataOutput) ([]byte, error) {
	params := url.Values{}
	params.Add("filename", image.Filename)
	params.Add("subfolder", image.Subfolder)
	params.Add("type", image.Type)
	return c.get(ctx, "/view", "/view", params)
}

// Interrupt stops whatever prompt the server is running, queued or not by
// this client.
func (c *ComfyClient) Interrupt(ctx context.Context) error {
	_, err := c.postJSON(ctx, "/interrupt", struct{}{})
	return err
}

// QueuePrompt submits prompt for execution. Progress is delivered on the
// returned item's Messages channel, which must be drained (see
// QueueItem.ProcessMessages).
func (c *ComfyClient) QueuePrompt(ctx context.Context, prompt *graphapi.RawPrompt) (*QueueItem, error) {
	if err := c.CheckConnection(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotConnected, err)
	}

	// held until the item is registered, see OnMessage
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	body, err := c.postJSON(ctx, "/prompt", graphapi.PromptRequest{
		ClientID: c.clientid,
		Prompt:   prompt,
	})
	if err != nil {
		return nil, err
	}

	item := newQueueItem(prompt)
	if err := json.Unmarshal(body, item); err != nil {
		return nil, fmt.Errorf("decoding /prompt response: %w", err)
	}
	if item.PromptID == "" {
		return nil, newAPIError("/prompt", http.StatusOK, body)
	}

	c.mu.Lock()
	c.queueditems[item.PromptID] = item
	c.mu.Unlock()
	return item, nil
}
