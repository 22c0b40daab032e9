// Package fetch downloads a single object to a local file.
//
// The object is written to a temporary file next to the destination and
// renamed into place only after the transfer completes, so a failed or
// interrupted download never leaves a truncated file at the destination.
// An existing destination is replaced on success and untouched on failure.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusget/pkg/provider"
)

// Validation errors, returned before any request is made.
var (
	// ErrEmptyKey indicates the request does not name an object.
	ErrEmptyKey = errors.New("object key is empty")

	// ErrDestinationDir indicates the destination's parent directory is missing.
	ErrDestinationDir = errors.New("destination directory does not exist")

	// ErrDestinationIsDir indicates the destination path is a directory.
	ErrDestinationIsDir = errors.New("destination is a directory")
)

// DefaultFileMode is applied to newly created destination files.
const DefaultFileMode os.FileMode = 0o644

// Request names the object to fetch and where to write it.
type Request struct {
	// Key is the object key within the provider's bucket.
	Key string

	// Destination is the local file path. Empty means DefaultDestination(Key)
	// in the working directory.
	Destination string
}

// Result describes a completed fetch.
type Result struct {
	// ID correlates log lines for this fetch.
	ID string

	// Key is the object key that was fetched.
	Key string

	// Path is the destination file path.
	Path string

	// Bytes is the number of bytes written.
	Bytes int64

	// Duration is the wall time spent downloading.
	Duration time.Duration
}

// Fetcher downloads objects from a provider into local files.
type Fetcher struct {
	prov   provider.Provider
	logger *zap.Logger
}

// New creates a Fetcher. A nil logger disables logging.
func New(prov provider.Provider, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{prov: prov, logger: logger}
}

// DefaultDestination returns the last path segment of key.
func DefaultDestination(key string) string {
	return path.Base(strings.TrimSuffix(key, "/"))
}

// Fetch downloads req.Key to req.Destination, creating or overwriting it.
// The object is looked up with Head first, then transferred with Download.
//
// Errors from the provider are returned unchanged so callers can classify
// them with the provider package helpers.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Key) == "" {
		return nil, ErrEmptyKey
	}

	dest := req.Destination
	if dest == "" {
		dest = DefaultDestination(req.Key)
	}

	id := uuid.New().String()
	log := f.logger.With(
		zap.String("download_id", id),
		zap.String("key", req.Key),
		zap.String("destination", dest),
	)

	mode, err := checkDestination(dest)
	if err != nil {
		return nil, err
	}

	// A missing object or denied access fails here, before any local file
	// is created.
	meta, err := f.prov.Head(ctx, req.Key)
	if err != nil {
		log.Debug("Object lookup failed", zap.Error(err))
		return nil, err
	}

	dir, base := filepath.Split(filepath.Clean(dest))
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	log.Debug("Starting download",
		zap.String("temp", tmpName),
		zap.Int64("size_bytes", meta.Size),
		zap.String("size", humanize.IBytes(uint64(meta.Size))))

	start := time.Now()
	n, err := f.prov.Download(ctx, req.Key, tmp)
	elapsed := time.Since(start)
	if err != nil {
		log.Debug("Download failed", zap.Int64("bytes", n), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	}

	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return nil, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return nil, fmt.Errorf("rename temp file: %w", err)
	}
	committed = true

	log.Info("Object downloaded",
		zap.Int64("bytes", n),
		zap.String("size", humanize.IBytes(uint64(n))),
		zap.Duration("elapsed", elapsed))

	return &Result{
		ID:       id,
		Key:      req.Key,
		Path:     dest,
		Bytes:    n,
		Duration: elapsed,
	}, nil
}

// checkDestination validates dest and returns the mode the written file
// should carry: the existing file's mode, or DefaultFileMode.
func checkDestination(dest string) (os.FileMode, error) {
	clean := filepath.Clean(dest)

	dir := filepath.Dir(clean)
	st, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrDestinationDir, dir)
		}
		return 0, fmt.Errorf("stat destination directory: %w", err)
	}
	if !st.IsDir() {
		return 0, fmt.Errorf("%w: %s is not a directory", ErrDestinationDir, dir)
	}

	st, err = os.Stat(clean)
	switch {
	case err == nil && st.IsDir():
		return 0, fmt.Errorf("%w: %s", ErrDestinationIsDir, clean)
	case err == nil:
		return st.Mode().Perm(), nil
	case errors.Is(err, os.ErrNotExist):
		return DefaultFileMode, nil
	default:
		return 0, fmt.Errorf("stat destination: %w", err)
	}
}
