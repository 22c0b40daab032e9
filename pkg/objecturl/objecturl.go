// Package objecturl parses object URLs into a bucket and object key.
//
// Two forms are accepted:
//   - https://host/bucket/key/path.pdf (path-style public URL)
//   - s3://bucket/key/path.pdf
package objecturl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// URL parsing errors
var (
	// ErrInvalidURL indicates the URL could not be parsed.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnsupportedScheme indicates the URL scheme is not supported.
	ErrUnsupportedScheme = errors.New("unsupported scheme")

	// ErrMissingBucket indicates the URL is missing a bucket name.
	ErrMissingBucket = errors.New("missing bucket name")

	// ErrMissingKey indicates the URL names a bucket but no object.
	ErrMissingKey = errors.New("missing object key")
)

// Location is a parsed object URL.
type Location struct {
	// Scheme is the lowercased URL scheme ("https", "http" or "s3").
	Scheme string

	// Host is the URL host for http(s) URLs. Empty for s3 URLs.
	Host string

	// Bucket is the bucket name.
	Bucket string

	// Key is the object key.
	Key string
}

// String returns the location in canonical s3://bucket/key form.
func (l *Location) String() string {
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}

// Endpoint returns the service endpoint implied by the URL, or "" when the
// URL does not carry one (s3:// URLs).
func (l *Location) Endpoint() string {
	if l.Host == "" {
		return ""
	}
	return l.Scheme + "://" + l.Host
}

// SplitPath splits a URL path of the form "/bucket/k1/.../kn" into the bucket
// (first segment) and the key (remaining segments joined with "/").
//
// A path with no key segments yields an empty key.
func SplitPath(path string) (bucket, key string) {
	path = strings.TrimPrefix(path, "/")
	bucket, key, _ = strings.Cut(path, "/")
	return bucket, key
}

// Parse parses an object URL into its bucket and key.
//
// Returns an error if the URL is malformed, uses an unsupported scheme, or
// does not name a single object.
func Parse(raw string) (*Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	schemeEnd := strings.Index(raw, "://")
	if schemeEnd == -1 {
		return nil, fmt.Errorf("%w: missing scheme (expected https://... or s3://...)", ErrInvalidURL)
	}

	scheme := strings.ToLower(raw[:schemeEnd])

	var loc *Location
	switch scheme {
	case "http", "https":
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("%w: missing host in %s", ErrInvalidURL, raw)
		}
		bucket, key := SplitPath(u.Path)
		loc = &Location{Scheme: scheme, Host: u.Host, Bucket: bucket, Key: key}
	case "s3":
		// Keys are taken verbatim; url.Parse would treat '?' and '#' as delimiters.
		bucket, key := SplitPath(raw[schemeEnd+3:])
		loc = &Location{Scheme: scheme, Bucket: bucket, Key: key}
	default:
		return nil, fmt.Errorf("%w: %s (supported: https, http, s3)", ErrUnsupportedScheme, scheme)
	}

	if loc.Bucket == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, raw)
	}
	if loc.Key == "" || strings.HasSuffix(loc.Key, "/") {
		return nil, fmt.Errorf("%w: %s does not name an object", ErrMissingKey, raw)
	}

	return loc, nil
}
