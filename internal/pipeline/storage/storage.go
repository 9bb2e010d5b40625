package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the backend.
var ErrNotFound = errors.New("object not found")

// Storage is a flat key/value object store. Keys use "/" as the separator on
// every backend; List and ListPrefixes return names relative to the prefix.
type Storage interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	ListPrefixes(ctx context.Context, bucket, prefix string) ([]string, error)
}

func dirPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
