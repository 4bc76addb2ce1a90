// Package blob archives collection exports in an S3-like object store.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bandkeeper/internal/config"
)

// Driver identifies a blob backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// PutOptions carries optional object attributes.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configures URL pre-signing. Only GET is supported.
type SignedURLOptions struct {
	Method string
	Expiry time.Duration
}

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is the subset of S3 semantics the export archive relies on.
type Store interface {
	// Put stores a new object and fails when key already exists.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Delete reports whether the object existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns objects under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// PresignURL returns ErrUnsupported when the driver cannot sign.
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

var (
	// ErrUnsupported is returned for optional capabilities a driver lacks.
	ErrUnsupported = errors.New("blob: unsupported operation")
	// ErrExists is returned by Put when the key is taken.
	ErrExists = errors.New("blob: object already exists")
	// ErrNotFound is returned for missing keys.
	ErrNotFound = errors.New("blob: object not found")
)

// Open builds the store selected by cfg.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.FSRoot)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func presignMethod(opts SignedURLOptions) error {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return ErrUnsupported
	}
	return nil
}
