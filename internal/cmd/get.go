package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusget/internal/config"
	"github.com/3leaps/nimbusget/internal/observability"
	"github.com/3leaps/nimbusget/pkg/fetch"
	"github.com/3leaps/nimbusget/pkg/objecturl"
	"github.com/3leaps/nimbusget/pkg/provider"
	"github.com/3leaps/nimbusget/pkg/provider/file"
	"github.com/3leaps/nimbusget/pkg/provider/s3"
)

// successMessage is the only line get writes to stdout.
const successMessage = "File downloaded successfully"

var getCmd = &cobra.Command{
	Use:   "get [url]",
	Short: "Download one object to a local file",
	Long: `Download one object from S3-compatible storage to a local file.

The URL names the object either path-style (https://host/bucket/key) or as
s3://bucket/key. When no URL argument is given, source.url from config or
NIMBUSGET_URL is used.

For http(s) URLs the endpoint defaults to the URL's scheme and host.
A file:// endpoint reads from a local bucket mirror laid out as
<root>/<bucket>/<key> instead of contacting a server.
The destination defaults to the last segment of the key in the current
directory. An existing destination is replaced only after the whole object
has been received.

Examples:
  nimbusget get https://s3.ap-northeast-2.wasabisys.com/reports/2024/q1.pdf \
    --region ap-northeast-2 -o q1.pdf
  nimbusget get s3://my-bucket/data/file.bin --profile prod
  NIMBUSGET_URL=https://minio.local:9000/b/k.txt nimbusget get
  nimbusget get s3://reports/2024/q1.pdf --endpoint file:///srv/mirror`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGet,
}

var (
	getAccessKey   string
	getSecretKey   string
	getRegion      string
	getEndpoint    string
	getProfile     string
	getPathStyle   bool
	getOutput      string
	getPartSize    string
	getConcurrency int
	getTimeout     time.Duration
)

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().StringVar(&getAccessKey, "access-key", "", "Access key ID (env: NIMBUSGET_ACCESS_KEY_ID)")
	getCmd.Flags().StringVar(&getSecretKey, "secret-key", "", "Secret access key (env: NIMBUSGET_SECRET_ACCESS_KEY)")
	getCmd.Flags().StringVar(&getRegion, "region", "", "Signing region (env: NIMBUSGET_REGION)")
	getCmd.Flags().StringVar(&getEndpoint, "endpoint", "", "Endpoint URL or file:// mirror root (default: scheme and host of the object URL)")
	getCmd.Flags().StringVar(&getProfile, "profile", "", "AWS shared config profile (env: NIMBUSGET_PROFILE)")
	getCmd.Flags().BoolVar(&getPathStyle, "path-style", true, "Use path-style addressing (env: NIMBUSGET_FORCE_PATH_STYLE)")
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "Destination file (default: last segment of the key)")
	getCmd.Flags().StringVar(&getPartSize, "part-size", "", "Ranged GET size, e.g. 8MiB (default 5MiB)")
	getCmd.Flags().IntVar(&getConcurrency, "concurrency", 0, "Parts fetched in parallel (default 1)")
	getCmd.Flags().DurationVar(&getTimeout, "timeout", 0, "Abort the download after this long (0 = no limit)")
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	if cfg == nil {
		return exitError(foundry.ExitFailure, "Configuration not loaded", errors.New("internal error"))
	}

	raw := cfg.Source.URL
	if len(args) == 1 {
		raw = args[0]
	}
	if raw == "" {
		return exitError(foundry.ExitInvalidArgument, "Missing object URL", errors.New("pass a URL argument or set source.url"))
	}

	loc, err := objecturl.Parse(raw)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid object URL", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Download.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Download.Timeout)
		defer cancel()
	}

	prov, err := newProvider(ctx, cfg, loc)
	if err != nil {
		var cfgErr *s3.ConfigError
		if errors.As(err, &cfgErr) || errors.Is(err, errInvalidEndpoint) {
			return exitError(foundry.ExitInvalidArgument, "Invalid storage configuration", err)
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = prov.Close() }()

	log := observability.CLILogger
	log.Debug("Resolved object location",
		zap.String("object", loc.String()),
		zap.String("endpoint", endpointFor(cfg, loc)),
		zap.String("region", cfg.Storage.Region))

	_, err = fetch.New(prov, log).Fetch(ctx, fetch.Request{
		Key:         loc.Key,
		Destination: cfg.Destination.Path,
	})
	if err != nil {
		return classifyFetchError(loc, err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), successMessage)
	return nil
}

var errInvalidEndpoint = errors.New("invalid endpoint")

// newProvider picks the backend from the endpoint: a file:// URL selects a
// local mirror directory, anything else an S3 client.
func newProvider(ctx context.Context, cfg *config.Config, loc *objecturl.Location) (provider.Provider, error) {
	root, isMirror, err := mirrorRoot(endpointFor(cfg, loc))
	if err != nil {
		return nil, err
	}
	if isMirror {
		return file.New(file.Config{BaseDir: filepath.Join(root, loc.Bucket)})
	}
	return s3.New(ctx, providerConfig(cfg, loc))
}

// mirrorRoot returns the local directory named by a file:// endpoint.
func mirrorRoot(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", errInvalidEndpoint, err)
	}
	if u.Scheme != string(provider.ProviderFile) {
		return "", false, nil
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", false, fmt.Errorf("%w: file endpoint must be local, got host %q", errInvalidEndpoint, u.Host)
	}
	if u.Path == "" {
		return "", false, fmt.Errorf("%w: file endpoint has no path", errInvalidEndpoint)
	}
	return filepath.FromSlash(u.Path), true, nil
}

// providerConfig binds the resolved configuration to one object location.
func providerConfig(cfg *config.Config, loc *objecturl.Location) s3.Config {
	return s3.Config{
		Bucket:          loc.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        endpointFor(cfg, loc),
		Profile:         cfg.Storage.Profile,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		ForcePathStyle:  cfg.Storage.ForcePathStyle,
		PartSize:        int64(cfg.Download.PartSize),
		Concurrency:     cfg.Download.Concurrency,
	}
}

// endpointFor prefers an explicitly configured endpoint over the URL's host.
func endpointFor(cfg *config.Config, loc *objecturl.Location) string {
	if cfg.Storage.Endpoint != "" {
		return cfg.Storage.Endpoint
	}
	return loc.Endpoint()
}

func classifyFetchError(loc *objecturl.Location, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return exitError(foundry.ExitSignalInt, "Download cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return exitError(foundry.ExitOperationTimeout, "Download timed out", err)
	case provider.IsNotFound(err), provider.IsBucketNotFound(err):
		return exitError(foundry.ExitExternalServiceUnavailable, fmt.Sprintf("Object not found: %s", loc), err)
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return exitError(foundry.ExitExternalServiceUnavailable, fmt.Sprintf("Access denied: %s", loc), err)
	case provider.IsRemote(err):
		return exitError(foundry.ExitExternalServiceUnavailable, "Download failed", err)
	case errors.Is(err, fetch.ErrEmptyKey),
		errors.Is(err, fetch.ErrDestinationDir),
		errors.Is(err, fetch.ErrDestinationIsDir):
		return exitError(foundry.ExitInvalidArgument, "Invalid download request", err)
	default:
		return exitError(foundry.ExitFileWriteError, "Failed to write destination", err)
	}
}
