// Package provider defines the object storage surface used by nimbusget.
//
// A provider is bound to one bucket and fetches single objects from it.
// Failures are surfaced as *ProviderError values wrapping the sentinel errors
// in this package; providers never retry.
package provider

import (
	"context"
	"io"
	"time"
)

// Provider fetches objects from a single bucket.
type Provider interface {
	// Head returns metadata for a single object.
	// Returns ErrNotFound if the object does not exist.
	Head(ctx context.Context, key string) (*ObjectMeta, error)

	// Download writes the full contents of the object to w and returns the
	// number of bytes written. The call blocks until the transfer completes
	// or fails.
	Download(ctx context.Context, key string, w io.WriterAt) (int64, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ObjectMeta contains metadata for a single object.
type ObjectMeta struct {
	// Key is the full object key in the bucket.
	Key string

	// Size is the object size in bytes.
	Size int64

	// ETag is the entity tag with surrounding quotes removed.
	ETag string

	// LastModified is when the object was last modified.
	LastModified time.Time

	// ContentType is the MIME type of the object.
	ContentType string
}

// ProviderType identifies a storage provider.
type ProviderType string

const (
	// ProviderS3 represents AWS S3 or S3-compatible storage.
	ProviderS3 ProviderType = "s3"

	// ProviderFile represents a local directory standing in for a bucket.
	ProviderFile ProviderType = "file"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
