package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/3leaps/nimbusget/pkg/provider"
)

// Provider implements provider.Provider for AWS S3 and S3-compatible storage.
type Provider struct {
	client      *s3.Client
	bucket      string
	partSize    int64
	concurrency int
}

// Ensure Provider implements the interface.
var _ provider.Provider = (*Provider)(nil)

// New creates a new S3 provider with the given configuration.
//
// The provider uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:       "New",
			Provider: provider.ProviderS3,
			Bucket:   cfg.Bucket,
			Err:      err,
		}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
			// Failures surface on the first attempt.
			o.Retryer = aws.NopRetryer{}
		},
	}

	// Custom endpoint for S3-compatible stores. Many of them reject the
	// default CRC trailers, so only send checksums when an operation needs them.
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		})
	}

	partSize := cfg.PartSize
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Provider{
		client:      s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:      cfg.Bucket,
		partSize:    partSize,
		concurrency: concurrency,
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	// Only apply explicit region if set; let the SDK resolve env/profile first.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // no session token: long-term keys only
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	awsCfg.Region = resolveRegion(cfg.Region, cfg.Endpoint, awsCfg.Region)

	return awsCfg, nil
}

// Bucket returns the bucket the provider is bound to.
func (p *Provider) Bucket() string {
	return p.bucket
}

// Head returns metadata for a single object.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	output, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}

	return &provider.ObjectMeta{
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		ETag:         cleanETag(aws.ToString(output.ETag)),
		LastModified: aws.ToTime(output.LastModified),
		ContentType:  aws.ToString(output.ContentType),
	}, nil
}

// Download fetches the whole object into w using ranged GETs of PartSize
// bytes. It returns the number of bytes written.
func (p *Provider) Download(ctx context.Context, key string, w io.WriterAt) (int64, error) {
	downloader := manager.NewDownloader(p.client, func(d *manager.Downloader) {
		d.PartSize = p.partSize
		d.Concurrency = p.concurrency
	})

	n, err := downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return n, p.wrapError("Download", key, err)
	}
	return n, nil
}

// Close releases any resources held by the provider.
// The S3 client doesn't require explicit cleanup, but this satisfies the interface.
func (p *Provider) Close() error {
	return nil
}

// wrapError converts S3 errors to provider errors with appropriate sentinel errors.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderS3,
		Bucket:   p.bucket,
		Key:      key,
		Err:      err,
	}

	if sentinel := classify(err); sentinel != nil {
		wrapped.Err = sentinel
		wrapped.Cause = err
	}
	return wrapped
}

// classify maps an S3 error to a provider sentinel, or nil when unknown.
func classify(err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket

	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		return provider.ErrNotFound
	case errors.As(err, &noSuchBucket):
		return provider.ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return provider.ErrNotFound
		case "NoSuchBucket":
			return provider.ErrBucketNotFound
		case "AccessDenied", "Forbidden":
			return provider.ErrAccessDenied
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return provider.ErrInvalidCredentials
		case "SlowDown", "Throttling", "RequestLimitExceeded":
			return provider.ErrThrottled
		case "ServiceUnavailable", "InternalError":
			return provider.ErrProviderUnavailable
		}
	}

	// HEAD responses carry no body, so the status code is all there is.
	// Transport failures have no response and stay unclassified.
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch status := respErr.HTTPStatusCode(); {
		case status == http.StatusNotFound:
			return provider.ErrNotFound
		case status == http.StatusForbidden:
			return provider.ErrAccessDenied
		case status == http.StatusTooManyRequests:
			return provider.ErrThrottled
		case status >= http.StatusInternalServerError:
			return provider.ErrProviderUnavailable
		}
	}
	return nil
}

// cleanETag removes surrounding quotes from an ETag value.
func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

// resolveRegion determines the final region to use after SDK config loading.
//
// sdkRegion already reflects an explicit cfgRegion or env/profile resolution.
// The only fallback applied here is us-east-1 for AWS S3 (no custom
// endpoint); S3-compatible stores get no default.
func resolveRegion(cfgRegion, endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}
	if cfgRegion != "" {
		return cfgRegion
	}
	if endpoint == "" {
		return DefaultAWSRegion
	}
	return ""
}
