package analysis

import (
	"context"
	"errors"
	"fmt"
)

// BlockType is the recognition-unit tag reported by the analysis service.
type BlockType string

const (
	BlockTypePage             BlockType = "PAGE"
	BlockTypeLine             BlockType = "LINE"
	BlockTypeWord             BlockType = "WORD"
	BlockTypeTable            BlockType = "TABLE"
	BlockTypeCell             BlockType = "CELL"
	BlockTypeKeyValueSet      BlockType = "KEY_VALUE_SET"
	BlockTypeSelectionElement BlockType = "SELECTION_ELEMENT"
)

// DefaultPage is the page number assigned to blocks that carry none.
const DefaultPage = 1

// Block is one recognized unit: a line, word, table or form element.
type Block struct {
	ID         string    `json:"Id,omitempty"`
	Type       BlockType `json:"BlockType"`
	Text       string    `json:"Text,omitempty"`
	Page       int       `json:"Page"`
	Confidence float64   `json:"Confidence,omitempty"`
}

// DocumentMetadata mirrors the metadata section of an analysis payload.
type DocumentMetadata struct {
	Pages int `json:"Pages"`
}

// Response is a complete analysis result for one document.
type Response struct {
	DocumentMetadata DocumentMetadata `json:"DocumentMetadata"`
	JobStatus        string           `json:"JobStatus,omitempty"`
	Blocks           []Block          `json:"Blocks"`
}

// BlocksOfType returns the blocks of the given type in document order.
func (r *Response) BlocksOfType(t BlockType) []Block {
	if r == nil {
		return nil
	}
	var out []Block
	for _, b := range r.Blocks {
		if b.Type == t {
			out = append(out, b)
		}
	}
	return out
}

// Merge appends the blocks of other to r, keeping the larger page count.
// Async jobs deliver one payload per result page.
func (r *Response) Merge(other *Response) {
	if other == nil {
		return
	}
	r.Blocks = append(r.Blocks, other.Blocks...)
	if other.DocumentMetadata.Pages > r.DocumentMetadata.Pages {
		r.DocumentMetadata.Pages = other.DocumentMetadata.Pages
	}
	if other.JobStatus != "" {
		r.JobStatus = other.JobStatus
	}
}

// DocumentRef locates a document in object storage.
type DocumentRef struct {
	Bucket string
	Key    string
	Size   int64
}

func (d DocumentRef) String() string {
	return fmt.Sprintf("%s/%s", d.Bucket, d.Key)
}

// Analyzer converts a stored PDF into a block list.
type Analyzer interface {
	Analyze(ctx context.Context, ref DocumentRef) (*Response, error)
}

var (
	// ErrDocumentTooLarge is returned when a synchronous analysis is requested
	// for a document above the synchronous size limit.
	ErrDocumentTooLarge = errors.New("document exceeds synchronous analysis limit")
	// ErrJobFailed is returned when an asynchronous job ends in FAILED.
	ErrJobFailed = errors.New("analysis job failed")
	// ErrJobTimeout is returned when an asynchronous job does not reach a
	// terminal status within the configured maximum wait.
	ErrJobTimeout = errors.New("analysis job did not finish in time")
)

// Error wraps a failed call to the analysis collaborator.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("analysis %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("analysis %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
