// Package s3 implements the provider interface for AWS S3 and S3-compatible storage.
package s3

// Config configures an S3 provider.
//
// Authentication priority:
//  1. Explicit AccessKeyID/SecretAccessKey (static credentials, if provided)
//  2. Environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
//  3. Shared credentials/config files, optionally with Profile
//  4. EC2 instance metadata / ECS task role / EKS IRSA
//
// Region handling:
//   - For AWS S3: if Region is empty and not set via environment/profile,
//     defaults to us-east-1.
//   - For S3-compatible stores (Endpoint set): no default is applied. Some
//     providers (e.g., Wasabi) sign against a specific region, so set it.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Region is the signing region.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	// Leave empty for AWS S3.
	// Examples:
	//   - Wasabi: https://s3.ap-northeast-2.wasabisys.com
	//   - MinIO: http://localhost:9000
	Endpoint string

	// Profile is the AWS profile name to use from shared config.
	Profile string

	// AccessKeyID is an explicit access key. If set, SecretAccessKey must also be set.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key. Required if AccessKeyID is set.
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs (bucket in path, not subdomain).
	ForcePathStyle bool

	// PartSize is the byte size of each ranged GET issued by Download.
	// Zero uses DefaultPartSize.
	PartSize int64

	// Concurrency is the number of parts fetched in parallel by Download.
	// Zero uses DefaultConcurrency.
	Concurrency int
}

// DefaultAWSRegion is the fallback region for AWS S3 when not specified.
const DefaultAWSRegion = "us-east-1"

// DefaultPartSize is the default Download part size (5 MiB).
const DefaultPartSize int64 = 5 * 1024 * 1024

// MinPartSize is the smallest part size accepted by Download.
const MinPartSize int64 = 1024 * 1024

// DefaultConcurrency keeps Download to one request in flight.
const DefaultConcurrency = 1

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}

	// If one explicit credential is set, both must be set
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}

	if c.PartSize < 0 || (c.PartSize > 0 && c.PartSize < MinPartSize) {
		return &ConfigError{Field: "PartSize", Message: "part size must be zero or at least 1 MiB"}
	}

	if c.Concurrency < 0 {
		return &ConfigError{Field: "Concurrency", Message: "concurrency must not be negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "s3 config: " + e.Field + ": " + e.Message
}
