package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string
	failPut error
	failGet error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, ctypes: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = b
	f.ctypes[*in.Bucket+"/"+*in.Key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type fakePresigner struct {
	expires time.Duration
	err     error
}

func (p *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	p.expires = o.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed/" + *in.Bucket + "/" + *in.Key}, nil
}

func newTestStore() (*S3BlobStore, *fakeS3, *fakePresigner) {
	api := newFakeS3()
	pre := &fakePresigner{}
	return &S3BlobStore{client: api, presigner: pre, bucket: "documents", endpoint: "http://minio:9000/"}, api, pre
}

func TestS3BlobStore_PutGetDelete(t *testing.T) {
	store, api, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "documents/u1/k", []byte("deadbeef"), "text/plain"))
	assert.Equal(t, "text/plain", api.ctypes["documents/documents/u1/k"])

	got, err := store.Get(ctx, "documents/u1/k")
	require.NoError(t, err)
	assert.Equal(t, []byte("deadbeef"), got)

	require.NoError(t, store.Delete(ctx, "documents/u1/k"))
	_, err = store.Get(ctx, "documents/u1/k")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestS3BlobStore_ErrorsArePersistence(t *testing.T) {
	store, api, _ := newTestStore()
	api.failPut = errors.New("connection reset")
	api.failGet = errors.New("timeout")

	assert.ErrorIs(t, store.Put(context.Background(), "k", []byte("x"), "text/plain"), common.ErrPersistence)
	_, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, common.ErrPersistence)
}

func TestS3BlobStore_PresignGet(t *testing.T) {
	store, _, pre := newTestStore()

	url, err := store.PresignGet(context.Background(), "k1", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://signed/documents/k1", url)
	assert.Equal(t, 5*time.Minute, pre.expires)

	pre.err = errors.New("no creds")
	_, err = store.PresignGet(context.Background(), "k1", time.Minute)
	assert.ErrorIs(t, err, common.ErrPersistence)
}

func TestS3BlobStore_URL(t *testing.T) {
	store, _, _ := newTestStore()
	assert.Equal(t, "http://minio:9000/documents/a/b", store.URL("a/b"))
}

func TestNewS3BlobStore_AppliesOptions(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		require.NotNil(t, c)
		return &s3.PresignClient{}
	}

	store, err := NewS3BlobStore(context.Background(), S3Options{
		Region: "us-east-1", AccessKey: "a", SecretKey: "s", Bucket: "documents", BaseEndpoint: "http://127.0.0.1:9000",
	})
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err = NewS3BlobStore(context.Background(), S3Options{Region: "us-east-1"})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}
