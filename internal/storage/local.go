package storage

import (
	"context"
	"crypto/md5" //nolint:gosec // MD5 mirrors the S3 ETag, not a security use
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore implements ObjectStore on a directory tree. Each bucket is a
// sub-directory of the root and keys are slash-separated paths inside it.
type LocalStore struct {
	root string
}

// NewLocalStore returns a store rooted at root. The directory is created on
// the first write.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local store root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve local store root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return nil, &Error{Op: "list", Bucket: bucket, Key: prefix, Err: err}
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, &Error{Op: "list", Bucket: bucket, Key: prefix, Err: notFound(err)}
	}

	var out []ObjectInfo
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			// Skip hidden directories
			if strings.HasPrefix(d.Name(), ".") && p != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil //nolint:nilerr // unreachable for paths produced by WalkDir
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // file vanished during the walk
		}
		out = append(out, ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "list", Bucket: bucket, Key: prefix, Err: err}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *LocalStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, &Error{Op: "get", Bucket: bucket, Key: key, Err: err}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, &Error{Op: "get", Bucket: bucket, Key: key, Err: notFound(err)}
	}
	return data, nil
}

func (s *LocalStore) Put(_ context.Context, bucket, key string, body []byte) error {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	if err := os.WriteFile(p, body, 0o644); err != nil {
		return &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	return nil
}

// Delete removes keys. Missing keys are not an error, matching S3.
func (s *LocalStore) Delete(_ context.Context, bucket string, keys ...string) error {
	var errs []error
	for _, key := range keys {
		p, err := s.objectPath(bucket, key)
		if err == nil {
			err = os.Remove(p)
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, &Error{Op: "delete", Bucket: bucket, Key: key, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (s *LocalStore) CreateBucket(_ context.Context, bucket string) error {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return &Error{Op: "create bucket", Bucket: bucket, Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Op: "create bucket", Bucket: bucket, Err: err}
	}
	return nil
}

// DeleteBucket removes an empty bucket directory.
func (s *LocalStore) DeleteBucket(_ context.Context, bucket string) error {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return &Error{Op: "delete bucket", Bucket: bucket, Err: err}
	}
	if err := os.Remove(dir); err != nil {
		return &Error{Op: "delete bucket", Bucket: bucket, Err: notFound(err)}
	}
	return nil
}

// EmptyBucket removes every object and the sub-directories that held them.
func (s *LocalStore) EmptyBucket(ctx context.Context, bucket string) (int, error) {
	objects, err := s.List(ctx, bucket, "")
	if err != nil {
		return 0, err
	}
	dir, _ := s.bucketDir(bucket)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, &Error{Op: "empty bucket", Bucket: bucket, Err: err}
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return 0, &Error{Op: "empty bucket", Bucket: bucket, Err: err}
		}
	}
	return len(objects), nil
}

func (s *LocalStore) Checksum(_ context.Context, bucket, key string, alg ChecksumAlgorithm) (string, error) {
	alg, err := ParseChecksumAlgorithm(string(alg))
	if err != nil {
		return "", &Error{Op: "checksum", Bucket: bucket, Key: key, Err: err}
	}
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return "", &Error{Op: "checksum", Bucket: bucket, Key: key, Err: err}
	}
	f, err := os.Open(p)
	if err != nil {
		return "", &Error{Op: "checksum", Bucket: bucket, Key: key, Err: notFound(err)}
	}
	defer f.Close()

	var h hash.Hash
	switch alg {
	case ChecksumMD5:
		h = md5.New() //nolint:gosec // see import
	case ChecksumSHA256:
		h = sha256.New()
	case ChecksumCRC32:
		h = crc32.NewIEEE()
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", &Error{Op: "checksum", Bucket: bucket, Key: key, Err: err}
	}

	switch alg {
	case ChecksumMD5:
		return hex.EncodeToString(h.Sum(nil)), nil
	case ChecksumCRC32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, h.(hash.Hash32).Sum32())
		return base64.StdEncoding.EncodeToString(buf), nil
	default:
		return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
	}
}

func (s *LocalStore) bucketDir(bucket string) (string, error) {
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`+"\x00") {
		return "", fmt.Errorf("%w: bucket name %q", ErrInvalidKey, bucket)
	}
	return filepath.Join(s.root, bucket), nil
}

// objectPath maps a key into its bucket directory and rejects keys that
// would resolve outside it.
func (s *LocalStore) objectPath(bucket, key string) (string, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	key = strings.ReplaceAll(key, "\x00", "")
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || clean != "/"+strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	p := filepath.Join(dir, filepath.FromSlash(clean))
	if !isPathWithinDirectory(p, dir) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return p, nil
}

// isPathWithinDirectory checks p against directory lexically and, when p
// already exists, again after resolving symlinks on both sides.
func isPathWithinDirectory(p, directory string) bool {
	sep := string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(p), filepath.Clean(directory)+sep) {
		return false
	}
	realPath, err := filepath.EvalSymlinks(p)
	if err != nil {
		return true
	}
	realDir, err := filepath.EvalSymlinks(directory)
	if err != nil {
		return false
	}
	return strings.HasPrefix(realPath, realDir+sep)
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
