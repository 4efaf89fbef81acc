package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/files-drop/internal/files"
)

// fakeS3 mimics the conditional-put and not-found behavior of a bucket
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	key := aws.ToString(in.Key)
	if aws.ToString(in.IfNoneMatch) == "*" {
		if _, ok := f.objects[key]; ok {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
		}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestStoreRoundTrip(t *testing.T) {
	client := newFakeS3()
	store := NewStore(client, "bucket", "uploads")
	ctx := context.Background()

	size, err := store.Put(ctx, "ABCD1234_hello.txt", strings.NewReader("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
	assert.Contains(t, client.objects, "uploads/ABCD1234_hello.txt")

	rc, err := store.Get(ctx, "ABCD1234_hello.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestStorePutIsWriteOnce(t *testing.T) {
	store := NewStore(newFakeS3(), "bucket", "")
	ctx := context.Background()

	_, err := store.Put(ctx, "ABCD1234_hello.txt", strings.NewReader("first"))
	require.NoError(t, err)

	_, err = store.Put(ctx, "ABCD1234_hello.txt", strings.NewReader("second"))
	assert.ErrorIs(t, err, files.ErrCodeCollision)
}

func TestStoreGetMissing(t *testing.T) {
	store := NewStore(newFakeS3(), "bucket", "")

	_, err := store.Get(context.Background(), "NOPE0000_file")
	assert.ErrorIs(t, err, files.ErrNotFound)
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	store := NewStore(newFakeS3(), "bucket", "")
	ctx := context.Background()

	_, err := store.Put(ctx, "ABCD1234_hello.txt", strings.NewReader("data"))
	require.NoError(t, err)

	assert.NoError(t, store.Delete(ctx, "ABCD1234_hello.txt"))
	assert.NoError(t, store.Delete(ctx, "ABCD1234_hello.txt"))

	_, err = store.Get(ctx, "ABCD1234_hello.txt")
	assert.ErrorIs(t, err, files.ErrNotFound)
}

func TestStoreTransportErrors(t *testing.T) {
	client := newFakeS3()
	client.err = errors.New("dial tcp: connection refused")
	store := NewStore(client, "bucket", "")
	ctx := context.Background()

	_, err := store.Put(ctx, "k", strings.NewReader("data"))
	assert.ErrorIs(t, err, files.ErrIOFailure)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, files.ErrIOFailure)

	assert.ErrorIs(t, store.Delete(ctx, "k"), files.ErrIOFailure)
}

func TestStoreWorksWithService(t *testing.T) {
	svc := files.NewService(NewStore(newFakeS3(), "bucket", "drop"), files.NewRegistry(), files.DefaultTTL)
	ctx := context.Background()

	file, err := svc.Upload(ctx, &files.UploadRequest{Name: "hello.txt", Content: strings.NewReader("hi there")})
	require.NoError(t, err)

	_, rc, err := svc.Download(ctx, file.Code)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hi there", string(data))
}
