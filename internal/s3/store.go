// Package s3 stores file blobs in an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pavel-fokin/files-drop/internal/files"
)

// API is the subset of the S3 client the store uses
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store implements files.BlobStore on an S3 bucket
type Store struct {
	client API
	bucket string
	prefix string
}

// NewStore creates a store writing objects under prefix in bucket
func NewStore(client API, bucket, prefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Put uploads content in a single request. If-None-Match makes the write
// conditional on the key being absent.
func (s *Store) Put(ctx context.Context, key string, content io.Reader) (int64, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read content: %w", files.ErrIOFailure, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		if hasCode(err, "PreconditionFailed", "ConditionalRequestConflict") {
			return 0, fmt.Errorf("%w: object %s exists", files.ErrCodeCollision, key)
		}
		return 0, fmt.Errorf("%w: failed to put object: %w", files.ErrIOFailure, err)
	}

	return int64(len(data)), nil
}

// Get returns the object body. The caller must close it.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) || hasCode(err, "NotFound", "NoSuchKey") {
			return nil, fmt.Errorf("%w: %s", files.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: failed to get object: %w", files.ErrIOFailure, err)
	}
	return out.Body, nil
}

// Delete removes the object; S3 treats deleting a missing key as success
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !hasCode(err, "NotFound", "NoSuchKey") {
		return fmt.Errorf("%w: failed to delete object: %w", files.ErrIOFailure, err)
	}
	return nil
}

func (s *Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
