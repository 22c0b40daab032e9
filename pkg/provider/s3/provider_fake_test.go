package s3_test

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusget/pkg/provider"
	providers3 "github.com/3leaps/nimbusget/pkg/provider/s3"
	"github.com/3leaps/nimbusget/test/cloudtest"
)

func newProvider(t *testing.T, srv *cloudtest.Server, bucket string, partSize int64) *providers3.Provider {
	t.Helper()
	return newProviderAt(t, srv.URL, bucket, partSize)
}

func newProviderAt(t *testing.T, endpoint, bucket string, partSize int64) *providers3.Provider {
	t.Helper()

	p, err := providers3.New(context.Background(), providers3.Config{
		Bucket:          bucket,
		Endpoint:        endpoint,
		Region:          cloudtest.Region,
		AccessKeyID:     cloudtest.TestAccessKeyID,
		SecretAccessKey: cloudtest.TestSecretAccessKey,
		ForcePathStyle:  true,
		PartSize:        partSize,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProvider_Head(t *testing.T) {
	ctx := context.Background()
	srv := cloudtest.Start(t)
	bucket := srv.CreateBucket(t, ctx)
	srv.PutObject(t, ctx, bucket, "resumes/cv.pdf", []byte("%PDF-1.7 fake"))

	p := newProvider(t, srv, bucket, 0)

	t.Run("existing object", func(t *testing.T) {
		meta, err := p.Head(ctx, "resumes/cv.pdf")
		require.NoError(t, err)
		assert.Equal(t, "resumes/cv.pdf", meta.Key)
		assert.Equal(t, int64(len("%PDF-1.7 fake")), meta.Size)
		assert.NotEmpty(t, meta.ETag)
		assert.NotContains(t, meta.ETag, `"`)
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := p.Head(ctx, "resumes/missing.pdf")
		require.Error(t, err)
		assert.True(t, provider.IsNotFound(err), "got %v", err)
	})
}

func TestProvider_Download(t *testing.T) {
	ctx := context.Background()
	srv := cloudtest.Start(t)
	bucket := srv.CreateBucket(t, ctx)

	small := []byte("hello from the fake store")
	large := cloudtest.Payload(int(providers3.MinPartSize)*2 + 4096)
	srv.PutObjectsWithContent(t, ctx, bucket, map[string][]byte{
		"k1/k2/small.txt": small,
		"large.bin":       large,
	})

	t.Run("single part", func(t *testing.T) {
		p := newProvider(t, srv, bucket, 0)
		buf := manager.NewWriteAtBuffer(nil)

		n, err := p.Download(ctx, "k1/k2/small.txt", buf)
		require.NoError(t, err)
		assert.Equal(t, int64(len(small)), n)
		assert.Equal(t, small, buf.Bytes())
	})

	t.Run("multiple ranged parts", func(t *testing.T) {
		p := newProvider(t, srv, bucket, providers3.MinPartSize)
		buf := manager.NewWriteAtBuffer(nil)

		n, err := p.Download(ctx, "large.bin", buf)
		require.NoError(t, err)
		assert.Equal(t, int64(len(large)), n)
		assert.True(t, bytes.Equal(large, buf.Bytes()), "downloaded bytes differ from stored object")
	})

	t.Run("missing key", func(t *testing.T) {
		p := newProvider(t, srv, bucket, 0)
		buf := manager.NewWriteAtBuffer(nil)

		_, err := p.Download(ctx, "nope.txt", buf)
		require.Error(t, err)
		assert.True(t, provider.IsNotFound(err), "got %v", err)

		var provErr *provider.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, "Download", provErr.Op)
		assert.Equal(t, bucket, provErr.Bucket)
		assert.Equal(t, "nope.txt", provErr.Key)
	})

	t.Run("missing bucket", func(t *testing.T) {
		p := newProvider(t, srv, "no-such-bucket-here", 0)
		buf := manager.NewWriteAtBuffer(nil)

		_, err := p.Download(ctx, "small.txt", buf)
		require.Error(t, err)
		assert.True(t, provider.IsBucketNotFound(err), "got %v", err)
	})
}

// closedEndpoint returns the URL of a port nothing listens on.
func closedEndpoint(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

func TestProvider_ConnectionRefused(t *testing.T) {
	ctx := context.Background()
	p := newProviderAt(t, closedEndpoint(t), "bucket", 0)

	t.Run("download", func(t *testing.T) {
		_, err := p.Download(ctx, "k", manager.NewWriteAtBuffer(nil))
		require.Error(t, err)
		assert.True(t, provider.IsRemote(err))
		assert.False(t, provider.IsNotFound(err), "network failure reported as not found: %v", err)
		assert.False(t, provider.IsAccessDenied(err))
		assert.False(t, provider.IsThrottled(err))
	})

	t.Run("head", func(t *testing.T) {
		_, err := p.Head(ctx, "k")
		require.Error(t, err)
		assert.False(t, provider.IsNotFound(err), "network failure reported as not found: %v", err)
	})
}

func TestProvider_NoRetries(t *testing.T) {
	ctx := context.Background()

	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>ServiceUnavailable</Code><Message>busy</Message></Error>`))
	}))
	t.Cleanup(ts.Close)

	p := newProviderAt(t, ts.URL, "bucket", 0)

	t.Run("download", func(t *testing.T) {
		hits.Store(0)
		_, err := p.Download(ctx, "k", manager.NewWriteAtBuffer(nil))
		require.Error(t, err)
		assert.True(t, provider.IsProviderUnavailable(err), "got %v", err)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("head", func(t *testing.T) {
		hits.Store(0)
		_, err := p.Head(ctx, "k")
		require.Error(t, err)
		assert.True(t, provider.IsProviderUnavailable(err), "got %v", err)
		assert.Equal(t, int32(1), hits.Load())
	})
}
