// Package storage provides the object-storage collaborator used to list and
// fetch label PDFs and to manage buckets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified,omitempty"`
	ETag         string    `json:"etag,omitempty"`
}

// ChecksumAlgorithm names a checksum that Checksum can report.
type ChecksumAlgorithm string

const (
	// ChecksumMD5 is the hex MD5 digest, which S3 reports as the ETag of
	// objects uploaded in a single part.
	ChecksumMD5 ChecksumAlgorithm = "MD5"
	// ChecksumSHA256 is the base64 SHA-256 digest.
	ChecksumSHA256 ChecksumAlgorithm = "SHA256"
	// ChecksumCRC32 is the base64 big-endian CRC32 (IEEE) value.
	ChecksumCRC32 ChecksumAlgorithm = "CRC32"
)

// ParseChecksumAlgorithm accepts the algorithm names case-insensitively.
func ParseChecksumAlgorithm(s string) (ChecksumAlgorithm, error) {
	switch alg := ChecksumAlgorithm(strings.ToUpper(strings.TrimSpace(s))); alg {
	case ChecksumMD5, ChecksumSHA256, ChecksumCRC32:
		return alg, nil
	case "SHA-256":
		return ChecksumSHA256, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedChecksum, s)
}

// ObjectStore is the storage surface used by the pipeline and the bucket
// tools. Listing hides pagination.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte) error
	Delete(ctx context.Context, bucket string, keys ...string) error
	CreateBucket(ctx context.Context, bucket string) error
	DeleteBucket(ctx context.Context, bucket string) error
	EmptyBucket(ctx context.Context, bucket string) (int, error)
	Checksum(ctx context.Context, bucket, key string, alg ChecksumAlgorithm) (string, error)
}

var (
	// ErrNotFound is returned for a missing object or bucket.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedChecksum is returned when the requested checksum is not
	// known or not available for the object.
	ErrUnsupportedChecksum = errors.New("unsupported checksum")
	// ErrInvalidKey is returned for keys that would escape their bucket.
	ErrInvalidKey = errors.New("invalid object key")
)

// Error wraps a failed storage operation with its location.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	loc := e.Bucket
	if e.Key != "" {
		loc += "/" + e.Key
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, loc, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsPDF reports whether key names a PDF by extension.
func IsPDF(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), ".pdf")
}

// FilterPDF keeps the objects whose key ends in .pdf, in key order.
func FilterPDF(objects []ObjectInfo) []ObjectInfo {
	var out []ObjectInfo
	for _, o := range objects {
		if IsPDF(o.Key) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
