// Package file implements provider.Provider over a local directory.
//
// The directory plays the role of a bucket: keys are slash-separated paths
// relative to it. It backs local mirrors of a bucket and serves as the
// swappable storage backend in fetch tests.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/3leaps/nimbusget/pkg/provider"
)

// Provider implements provider.Provider for a local directory.
type Provider struct {
	baseDir string
}

var _ provider.Provider = (*Provider)(nil)

// Config configures a file provider.
type Config struct {
	// BaseDir is the directory standing in for the bucket (required).
	BaseDir string
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

// New creates a provider rooted at cfg.BaseDir. A missing base directory is
// reported as provider.ErrBucketNotFound.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := filepath.Clean(cfg.BaseDir)
	st, err := os.Stat(base)
	if err == nil && !st.IsDir() {
		err = fmt.Errorf("%s is not a directory", base)
	}
	if err != nil {
		return nil, &provider.ProviderError{
			Op:       "New",
			Provider: provider.ProviderFile,
			Bucket:   base,
			Err:      provider.ErrBucketNotFound,
			Cause:    err,
		}
	}
	return &Provider{baseDir: base}, nil
}

// Close is a no-op.
func (p *Provider) Close() error { return nil }

// Head stats the file at key.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	st, err := p.stat(key)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	return &provider.ObjectMeta{
		Key:          strings.TrimPrefix(key, "/"),
		Size:         st.Size(),
		LastModified: st.ModTime(),
	}, nil
}

// Download copies the file at key into w starting at offset 0.
func (p *Provider) Download(ctx context.Context, key string, w io.WriterAt) (int64, error) {
	if _, err := p.stat(key); err != nil {
		return 0, p.wrapError("Download", key, err)
	}
	full, _ := p.fullPath(key)
	f, err := os.Open(full)
	if err != nil {
		return 0, p.wrapError("Download", key, err)
	}
	defer func() { _ = f.Close() }()

	n, err := io.Copy(io.NewOffsetWriter(w, 0), &ctxReader{ctx: ctx, r: f})
	if err != nil {
		return n, p.wrapError("Download", key, err)
	}
	return n, nil
}

func (p *Provider) stat(key string) (os.FileInfo, error) {
	full, err := p.fullPath(key)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, provider.ErrNotFound
	}
	return st, nil
}

func (p *Provider) fullPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "/")
	// Prevent path traversal.
	clean := filepath.Clean("/" + key)
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key path %q", key)
	}
	return filepath.Join(p.baseDir, filepath.FromSlash(clean)), nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Bucket: p.baseDir, Key: key, Err: err}
	// Normalize common filesystem errors to provider sentinels.
	switch {
	case err == provider.ErrNotFound:
	case os.IsNotExist(err):
		wrapped.Err = provider.ErrNotFound
		wrapped.Cause = err
	case os.IsPermission(err):
		wrapped.Err = provider.ErrAccessDenied
		wrapped.Cause = err
	}
	return wrapped
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
