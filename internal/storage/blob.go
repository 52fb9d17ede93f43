package storage

import (
	"context"
	"io"
	"time"
)

// BlobStore is the durable file storage consumed by the upload and
// generation flows. SignedURL returns a short-lived download URL suitable
// for handing to the out-of-process worker.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
