package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in memory; unimplemented methods panic through the
// embedded nil interface.
type fakeS3 struct {
	s3iface.S3API

	mu      sync.Mutex
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	down    bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Key)] = data
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.StringValue(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	f.mu.Unlock()
	sort.Strings(keys)

	// Two pages to exercise pagination.
	half := len(keys) / 2
	for i, page := range [][]string{keys[:half], keys[half:]} {
		out := &s3.ListObjectsV2Output{}
		for _, k := range page {
			out.Contents = append(out.Contents, &s3.Object{Key: aws.String(k)})
		}
		if !fn(out, i == 1) {
			break
		}
	}
	return nil
}

func (f *fakeS3) HeadBucketWithContext(_ aws.Context, _ *s3.HeadBucketInput, _ ...request.Option) (*s3.HeadBucketOutput, error) {
	if f.down {
		return nil, errors.New("connection refused")
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "bucket", "/mine/", quietLogger())
	testStoreContract(t, store)

	require.NotEmpty(t, fake.puts)
	for _, put := range fake.puts {
		require.True(t, strings.HasPrefix(aws.StringValue(put.Key), "mine/"))
		require.Equal(t, s3.ObjectCannedACLPrivate, aws.StringValue(put.ACL))
		require.Equal(t, s3.ServerSideEncryptionAes256, aws.StringValue(put.ServerSideEncryption))
	}

	fake.down = true
	require.False(t, store.Available(context.Background()))
}

func TestIsS3NotFound(t *testing.T) {
	require.True(t, isS3NotFound(awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)))
	require.True(t, isS3NotFound(awserr.New("NotFound", "missing", nil)))
	require.False(t, isS3NotFound(awserr.New("AccessDenied", "denied", nil)))
}
