package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Download for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the subset of object storage used to mirror artifacts.
type ObjectStorage interface {
	// Upload writes an object, replacing any existing one.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object. Missing keys yield ErrObjectNotFound.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// EnsureBucket creates the bucket if it does not exist yet.
	EnsureBucket(ctx context.Context) error
}
