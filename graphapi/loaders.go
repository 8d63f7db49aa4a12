package graphapi

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strings"
)

var pngSignature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// ErrNoPromptMetadata is returned when a PNG does not carry a "prompt" text chunk.
var ErrNoPromptMetadata = errors.New("png does not contain prompt metadata")

// NewRawPromptFromJSONReader decodes an API-format prompt ("Save (API Format)" in ComfyUI).
func NewRawPromptFromJSONReader(r io.Reader) (*RawPrompt, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	prompt := NewRawPrompt()
	if err := json.Unmarshal(data, prompt); err != nil {
		return nil, err
	}
	return prompt, nil
}

func NewRawPromptFromJSONFile(path string) (*RawPrompt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewRawPromptFromJSONReader(f)
}

func NewRawPromptFromJSONString(data string) (*RawPrompt, error) {
	return NewRawPromptFromJSONReader(strings.NewReader(data))
}

// NewRawPromptFromPNGReader extracts the API-format prompt ComfyUI stores in
// the "prompt" tEXt chunk of the images it saves. Reading stops at that
// chunk.
func NewRawPromptFromPNGReader(r io.Reader) (*RawPrompt, error) {
	var prompt string
	found := false
	err := scanPNGText(r, func(keyword, text string) bool {
		if keyword != "prompt" {
			return true
		}
		prompt, found = text, true
		return false
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoPromptMetadata
	}
	return NewRawPromptFromJSONString(prompt)
}

func NewRawPromptFromPNGFile(path string) (*RawPrompt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewRawPromptFromPNGReader(f)
}

// GetPngMetadata returns the keyword/text pairs of every tEXt chunk in a PNG stream.
func GetPngMetadata(r io.Reader) (map[string]string, error) {
	chunks := make(map[string]string)
	err := scanPNGText(r, func(keyword, text string) bool {
		chunks[keyword] = text
		return true
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// maxPNGChunkLength is the largest chunk length the PNG format allows.
const maxPNGChunkLength = 1<<31 - 1

// scanPNGText calls fn for each tEXt chunk until fn returns false, the IEND
// chunk is reached or the stream ends on a chunk boundary. Text chunks are
// checked against their CRC, other chunks are skipped unread.
func scanPNGText(r io.Reader, fn func(keyword, text string) bool) error {
	signature := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, signature); err != nil {
		return fmt.Errorf("reading png signature: %w", err)
	}
	if !bytes.Equal(signature, pngSignature) {
		return errors.New("not a valid PNG file")
	}

	var header [8]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading png chunk header: %w", err)
		}
		length := binary.BigEndian.Uint32(header[:4])
		chunkType := string(header[4:])
		if length > maxPNGChunkLength {
			return fmt.Errorf("png chunk %q: length %d exceeds the format limit", chunkType, length)
		}

		if chunkType != "tEXt" {
			// data and CRC
			if _, err := io.CopyN(io.Discard, r, int64(length)+4); err != nil {
				return fmt.Errorf("skipping png chunk %q: %w", chunkType, err)
			}
			if chunkType == "IEND" {
				return nil
			}
			continue
		}

		// ReadAll grows with what is actually there, a lying length cannot
		// force a large allocation up front.
		data, err := io.ReadAll(io.LimitReader(r, int64(length)))
		if err != nil {
			return err
		}
		if uint32(len(data)) != length {
			return fmt.Errorf("png tEXt chunk: %w", io.ErrUnexpectedEOF)
		}
		var crc [4]byte
		if _, err := io.ReadFull(r, crc[:]); err != nil {
			return fmt.Errorf("png tEXt chunk crc: %w", err)
		}
		sum := crc32.NewIEEE()
		sum.Write(header[4:])
		sum.Write(data)
		if sum.Sum32() != binary.BigEndian.Uint32(crc[:]) {
			return errors.New("png tEXt chunk: crc mismatch")
		}

		keyword, text, ok := bytes.Cut(data, []byte{0})
		if !ok {
			return errors.New("malformed tEXt chunk")
		}
		if !fn(string(keyword), string(text)) {
			return nil
		}
	}
}
