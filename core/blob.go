package core

import (
	"context"
	"io"
	"time"
)

var ErrBlobNotFound = NewNotFoundError("file not found")

// BlobStorage stores opaque files under slash separated paths.
type BlobStorage interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// SignedURL returns a time limited download URL for path.
	SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, path string) error
}
