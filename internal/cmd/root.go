// Package cmd implements the nimbusget command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/3leaps/nimbusget/internal/config"
	"github.com/3leaps/nimbusget/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "none",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected via ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "nimbusget",
	Short: "Download a single object from S3-compatible storage",
	Long: `nimbusget fetches one object from an S3-compatible object store, given its
public URL, and writes it to a local file.

Credentials, region and endpoint come from flags, NIMBUSGET_* environment
variables, or a nimbusget.yaml config file.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRuntime,
}

var (
	cfgFile    string
	logLevel   string
	logProfile string
)

// flagKeys maps CLI flags onto config keys. Only flags set on the command
// line become overrides, so env and file values survive unset flags.
var flagKeys = map[string]string{
	"log-level":   "logging.level",
	"log-profile": "logging.profile",
	"access-key":  "storage.access_key_id",
	"secret-key":  "storage.secret_access_key",
	"region":      "storage.region",
	"endpoint":    "storage.endpoint",
	"profile":     "storage.profile",
	"path-style":  "storage.force_path_style",
	"output":      "destination.path",
	"part-size":   "download.part_size",
	"concurrency": "download.concurrency",
	"timeout":     "download.timeout",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./nimbusget.yaml, then user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env: NIMBUSGET_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logProfile, "log-profile", "", "Log format: console, structured (env: NIMBUSGET_LOG_PROFILE)")
}

func initRuntime(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(cmd.Context(), cfgFile, flagOverrides(cmd.Flags()))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}

	observability.CLILogger.Debug("Configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("config_file", cfgFile),
		zap.String("log_level", cfg.Logging.Level))
	return nil
}

// flagOverrides collects explicitly set flags as config overrides.
func flagOverrides(fs *pflag.FlagSet) map[string]any {
	overrides := make(map[string]any)
	fs.Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			overrides[key] = f.Value.String()
		}
	})
	return overrides
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	_ = observability.CLILogger.Sync()
	return reportError(rootCmd.ErrOrStderr(), err)
}

// reportError prints err and maps it to an exit code.
func reportError(w io.Writer, err error) int {
	if err == nil {
		return foundry.ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		_, _ = fmt.Fprintf(w, "Error: %s\n", exitErr.Error())
		return exitErr.Code
	}

	// Cobra usage errors: unknown flags, wrong arg counts.
	_, _ = fmt.Fprintf(w, "Error: %s\n", err.Error())
	return foundry.ExitUsage
}
