package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/richinsley/comfyworkflow/graphapi"
)

// GetImages queues prompt, waits for it to finish and downloads every image
// it produced, keyed by the id of the node that produced it.
func (c *ComfyClient) GetImages(ctx context.Context, prompt *graphapi.RawPrompt) (ImagesResponse, error) {
	return c.RenderImages(ctx, prompt, nil)
}

// RenderImages is GetImages with handlers receiving the prompt's messages
// while it runs.
func (c *ComfyClient) RenderImages(ctx context.Context, prompt *graphapi.RawPrompt, handlers *MessageHandlers) (ImagesResponse, error) {
	start := time.Now()
	retv, err := c.renderImages(ctx, prompt, handlers)
	c.metrics.observeRender(start, err)
	return retv, err
}

func (c *ComfyClient) renderImages(ctx context.Context, prompt *graphapi.RawPrompt, handlers *MessageHandlers) (ImagesResponse, error) {
	item, err := c.QueuePrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if err := item.ProcessMessages(ctx, handlers); err != nil {
		if ctx.Err() != nil {
			c.abandon(item)
		}
		return nil, err
	}
	return c.CollectImages(ctx, item.PromptID)
}

// CollectImages downloads the images recorded in the history of promptID.
func (c *ComfyClient) CollectImages(ctx context.Context, promptID string) (ImagesResponse, error) {
	history, err := c.GetHistory(ctx, promptID)
	if err != nil {
		return nil, err
	}
	entry, ok := history[promptID]
	if !ok {
		return nil, fmt.Errorf("no history for prompt %s", promptID)
	}

	retv := make(ImagesResponse)
	for nodeID, outputs := range entry.Outputs {
		if len(outputs.Images) == 0 {
			continue
		}
		images := make([]ImageContainer, 0, len(outputs.Images))
		for _, image := range outputs.Images {
			data, err := c.GetImage(ctx, image)
			if err != nil {
				return nil, fmt.Errorf("downloading %s from node %s: %w", image.Filename, nodeID, err)
			}
			images = append(images, ImageContainer{Data: data, Image: image})
		}
		retv[nodeID] = images
	}
	return retv, nil
}

// SaveImages writes every image in response to dir, which is created if
// needed. An image keeps its server subfolder below dir, so equal filenames
// from different subfolders do not collide. Existing files are left alone
// unless overwrite is set. It returns the paths written.
func SaveImages(response ImagesResponse, dir string, overwrite bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	written := make([]string, 0)
	for nodeID, images := range response {
		for _, image := range images {
			name := filepath.Base(image.Image.Filename)
			if name == "." || name == string(filepath.Separator) {
				return written, fmt.Errorf("node %s: invalid image filename %q", nodeID, image.Image.Filename)
			}
			// rooting the subfolder before cleaning keeps ".." inside dir
			sub := filepath.Clean(string(filepath.Separator) + filepath.FromSlash(image.Image.Subfolder))
			path := filepath.Join(dir, sub, name)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return written, err
			}

			flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			if !overwrite {
				flags |= os.O_EXCL
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if errors.Is(err, os.ErrExist) {
				slog.Warn("Skipping existing image", "path", path)
				continue
			}
			if err != nil {
				return written, err
			}
			_, err = f.Write(image.Data)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	return written, nil
}
