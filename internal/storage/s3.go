package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// maxDeleteBatch is the DeleteObjects per-request key limit.
const maxDeleteBatch = 1000

// defaultRegion needs no LocationConstraint on CreateBucket.
const defaultRegion = "us-east-1"

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// S3Store implements ObjectStore on Amazon S3.
type S3Store struct {
	client S3API
	region string
}

// NewS3Store wraps client. region decides the LocationConstraint used when
// creating buckets.
func NewS3Store(client S3API, region string) *S3Store {
	if region == "" {
		region = defaultRegion
	}
	return &S3Store{client: client, region: region}
}

// NewS3StoreFromConfig builds the S3 client from an AWS configuration.
func NewS3StoreFromConfig(cfg aws.Config) *S3Store {
	return NewS3Store(s3.NewFromConfig(cfg), cfg.Region)
}

func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var out []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.wrap("list", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
				ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrap("get", bucket, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.wrap("get", bucket, key, fmt.Errorf("read body: %w", err))
	}
	return data, nil
}

func (s *S3Store) Put(ctx context.Context, bucket, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return s.wrap("put", bucket, key, err)
	}
	return nil
}

// Delete removes keys in batches of at most 1000. Per-key failures reported
// by S3 are joined into the returned error.
func (s *S3Store) Delete(ctx context.Context, bucket string, keys ...string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		resp, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return s.wrap("delete", bucket, "", err)
		}
		if len(resp.Errors) > 0 {
			errs := make([]error, 0, len(resp.Errors))
			for _, e := range resp.Errors {
				errs = append(errs, &Error{
					Op:     "delete",
					Bucket: bucket,
					Key:    aws.ToString(e.Key),
					Err:    fmt.Errorf("%s: %s", aws.ToString(e.Code), aws.ToString(e.Message)),
				})
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

func (s *S3Store) CreateBucket(ctx context.Context, bucket string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return s.wrap("create bucket", bucket, "", err)
	}
	return nil
}

func (s *S3Store) DeleteBucket(ctx context.Context, bucket string) error {
	if _, err := s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return s.wrap("delete bucket", bucket, "", err)
	}
	return nil
}

// EmptyBucket deletes every object and returns how many were deleted.
func (s *S3Store) EmptyBucket(ctx context.Context, bucket string) (int, error) {
	objects, err := s.List(ctx, bucket, "")
	if err != nil {
		return 0, err
	}
	keys := make([]string, len(objects))
	for i, o := range objects {
		keys[i] = o.Key
	}
	if err := s.Delete(ctx, bucket, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Checksum reports MD5 from the ETag. SHA256 and CRC32 are only available
// when the object was uploaded with that additive checksum.
func (s *S3Store) Checksum(ctx context.Context, bucket, key string, alg ChecksumAlgorithm) (string, error) {
	alg, err := ParseChecksumAlgorithm(string(alg))
	if err != nil {
		return "", &Error{Op: "checksum", Bucket: bucket, Key: key, Err: err}
	}
	input := &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}
	if alg != ChecksumMD5 {
		input.ChecksumMode = types.ChecksumModeEnabled
	}
	head, err := s.client.HeadObject(ctx, input)
	if err != nil {
		return "", s.wrap("checksum", bucket, key, err)
	}

	var sum string
	switch alg {
	case ChecksumMD5:
		sum = strings.Trim(aws.ToString(head.ETag), `"`)
		if strings.Contains(sum, "-") {
			return "", &Error{Op: "checksum", Bucket: bucket, Key: key,
				Err: fmt.Errorf("%w: multipart ETag %s is not an MD5 digest", ErrUnsupportedChecksum, sum)}
		}
	case ChecksumSHA256:
		sum = aws.ToString(head.ChecksumSHA256)
	case ChecksumCRC32:
		sum = aws.ToString(head.ChecksumCRC32)
	}
	if sum == "" {
		return "", &Error{Op: "checksum", Bucket: bucket, Key: key,
			Err: fmt.Errorf("%w: object has no %s checksum", ErrUnsupportedChecksum, alg)}
	}
	return sum, nil
}

func (s *S3Store) wrap(op, bucket, key string, err error) error {
	if isNotFound(err) {
		err = fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}
