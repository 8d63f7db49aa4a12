package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/richinsley/comfyworkflow/graphapi"
)

type ImageType string

const (
	InputImageType  ImageType = "input"
	TempImageType   ImageType = "temp"
	OutputImageType ImageType = "output"
)

// InputValue returns the value a LoadImage node expects for this upload.
func (r *UploadImageResult) InputValue() graphapi.InputValue {
	if r.Subfolder == "" {
		return graphapi.StringValue(r.Name)
	}
	return graphapi.StringValue(r.Subfolder + "/" + r.Name)
}

func (c *ComfyClient) upload(ctx context.Context, route string, r io.Reader, filename string, fields map[string]string) (*UploadImageResult, error) {
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	formFile, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(formFile, r); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+route, &requestBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := c.do(req, route)
	if err != nil {
		return nil, err
	}

	// without overwrite the server renames clashing files
	retv := &UploadImageResult{}
	if err := json.Unmarshal(body, retv); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", route, err)
	}
	if retv.Name == "" {
		return nil, fmt.Errorf("%s: invalid response format", route)
	}
	return retv, nil
}

// UploadFileFromReader uploads r as filename into the server folder given
// by filetype. The stored name is in the result.
func (c *ComfyClient) UploadFileFromReader(ctx context.Context, r io.Reader, filename string, overwrite bool, filetype ImageType, subfolder string) (*UploadImageResult, error) {
	return c.upload(ctx, "/upload/image", r, filename, map[string]string{
		"overwrite": strconv.FormatBool(overwrite),
		"type":      string(filetype),
		"subfolder": subfolder,
	})
}

func (c *ComfyClient) UploadFileFromPath(ctx context.Context, filePath string, overwrite bool, filetype ImageType, subfolder string) (*UploadImageResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return c.UploadFileFromReader(ctx, file, filepath.Base(filePath), overwrite, filetype, subfolder)
}

// UploadImage encodes img as PNG and uploads it.
func (c *ComfyClient) UploadImage(ctx context.Context, img image.Image, filename string, overwrite bool, filetype ImageType, subfolder string) (*UploadImageResult, error) {
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		return nil, err
	}
	return c.UploadFileFromReader(ctx, &buffer, filepath.Base(filename), overwrite, filetype, subfolder)
}

// UploadMaskFromReader uploads a mask whose alpha channel is applied to the
// previously uploaded image original.
func (c *ComfyClient) UploadMaskFromReader(ctx context.Context, r io.Reader, filename string, original DataOutput, overwrite bool, subfolder string) (*UploadImageResult, error) {
	ref, err := json.Marshal(original)
	if err != nil {
		return nil, err
	}
	return c.upload(ctx, "/upload/mask", r, filename, map[string]string{
		"overwrite":    strconv.FormatBool(overwrite),
		"type":         string(InputImageType),
		"subfolder":    subfolder,
		"original_ref": string(ref),
	})
}
