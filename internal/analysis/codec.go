package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// ReadResponse decodes a persisted analysis payload.
//
// Decoding is lenient at the block level: a missing Blocks array yields an
// empty response, a block without Text gets "", and a missing, non-positive
// or malformed Page becomes DefaultPage. Only input that is not a JSON
// object at all is an error.
func ReadResponse(r io.Reader) (*Response, error) {
	var raw struct {
		DocumentMetadata json.RawMessage `json:"DocumentMetadata"`
		JobStatus        json.RawMessage `json:"JobStatus"`
		Blocks           json.RawMessage `json:"Blocks"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode analysis payload: %w", err)
	}

	var rawBlocks []json.RawMessage
	if len(raw.Blocks) > 0 {
		_ = json.Unmarshal(raw.Blocks, &rawBlocks)
	}

	resp := &Response{Blocks: make([]Block, 0, len(rawBlocks))}
	if len(raw.DocumentMetadata) > 0 {
		var meta map[string]any
		if json.Unmarshal(raw.DocumentMetadata, &meta) == nil {
			resp.DocumentMetadata.Pages = intValue(meta["Pages"], 0)
		}
	}
	if len(raw.JobStatus) > 0 {
		var status string
		if json.Unmarshal(raw.JobStatus, &status) == nil {
			resp.JobStatus = status
		}
	}

	for _, rb := range rawBlocks {
		var fields map[string]any
		if err := json.Unmarshal(rb, &fields); err != nil {
			continue
		}
		resp.Blocks = append(resp.Blocks, blockFromFields(fields))
	}
	return resp, nil
}

// ReadResponseFile decodes the analysis payload stored at path.
func ReadResponseFile(path string) (*Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open analysis payload: %w", err)
	}
	defer f.Close()

	resp, err := ReadResponse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return resp, nil
}

// WriteResponse encodes resp as indented JSON in the persisted shape.
func WriteResponse(w io.Writer, resp *Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encode analysis payload: %w", err)
	}
	return nil
}

func blockFromFields(fields map[string]any) Block {
	b := Block{
		ID:         stringValue(fields["Id"]),
		Type:       BlockType(stringValue(fields["BlockType"])),
		Text:       stringValue(fields["Text"]),
		Page:       intValue(fields["Page"], DefaultPage),
		Confidence: floatValue(fields["Confidence"]),
	}
	if b.Page < 1 {
		b.Page = DefaultPage
	}
	return b
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func intValue(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return fallback
		}
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return fallback
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return 0
}
