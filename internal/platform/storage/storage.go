// Package storage abstracts blob persistence for uploaded documents.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound indicates the requested blob does not exist.
var ErrNotFound = errors.New("storage: blob not found")

// Driver moves bytes in and out of a blob store. Keys are opaque strings
// assigned by the caller; drivers must not interpret them as paths beyond
// what their backend requires.
type Driver interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
