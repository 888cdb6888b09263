// Package storage keeps encrypted document blobs in an S3-compatible
// object store.
package storage

import (
	"context"
	"time"
)

// BlobStore is the object storage used by the document service. Blobs are
// opaque to it: callers hand in already-encrypted bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	// URL is the unsigned object location recorded alongside the document.
	URL(key string) string
}
