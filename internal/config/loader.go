// Package config loads nimbusget configuration.
//
// Precedence, highest first: runtime overrides (CLI flags), environment
// variables (NIMBUSGET_*), config file, defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by LoadFile.
const EnvPrefix = "NIMBUSGET"

// AppName names the config file and the user config directory.
const AppName = "nimbusget"

// Config is the resolved configuration.
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Source      SourceConfig      `mapstructure:"source" yaml:"source"`
	Destination DestinationConfig `mapstructure:"destination" yaml:"destination"`
	Download    DownloadConfig    `mapstructure:"download" yaml:"download"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// StorageConfig describes how to reach and authenticate to the object store.
type StorageConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Profile         string `mapstructure:"profile" yaml:"profile"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// SourceConfig names the object to fetch.
type SourceConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// DestinationConfig names the local file to write.
type DestinationConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DownloadConfig tunes the transfer.
type DownloadConfig struct {
	PartSize    ByteSize      `mapstructure:"part_size" yaml:"part_size"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LoggingConfig selects the CLI logger level and output profile.
type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// ByteSize is a byte count that also decodes from strings such as "8MiB".
type ByteSize int64

// String renders the size in IEC units.
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// MarshalYAML renders the size in IEC units.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

type envSpec struct {
	Name string
	Path string
}

var (
	configMu  sync.RWMutex
	appConfig *Config
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.profile", "")
	v.SetDefault("storage.force_path_style", true)

	v.SetDefault("source.url", "")
	v.SetDefault("destination.path", "")

	v.SetDefault("download.part_size", "5MiB")
	v.SetDefault("download.concurrency", 1)
	v.SetDefault("download.timeout", "0s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "console")
}

func getEnvSpecs() []envSpec {
	return []envSpec{
		{Name: EnvPrefix + "_ACCESS_KEY_ID", Path: "storage.access_key_id"},
		{Name: EnvPrefix + "_SECRET_ACCESS_KEY", Path: "storage.secret_access_key"},
		{Name: EnvPrefix + "_REGION", Path: "storage.region"},
		{Name: EnvPrefix + "_ENDPOINT", Path: "storage.endpoint"},
		{Name: EnvPrefix + "_PROFILE", Path: "storage.profile"},
		{Name: EnvPrefix + "_FORCE_PATH_STYLE", Path: "storage.force_path_style"},
		{Name: EnvPrefix + "_URL", Path: "source.url"},
		{Name: EnvPrefix + "_OUTPUT", Path: "destination.path"},
		{Name: EnvPrefix + "_PART_SIZE", Path: "download.part_size"},
		{Name: EnvPrefix + "_CONCURRENCY", Path: "download.concurrency"},
		{Name: EnvPrefix + "_TIMEOUT", Path: "download.timeout"},
		{Name: EnvPrefix + "_LOG_LEVEL", Path: "logging.level"},
		{Name: EnvPrefix + "_LOG_PROFILE", Path: "logging.profile"},
	}
}

// getUserConfigPaths lists directories searched for nimbusget.yaml when no
// explicit file is given.
func getUserConfigPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, AppName))
	}
	return paths
}

// LoadFile resolves configuration, reading path when set. An explicit path
// must exist; without one nimbusget.yaml is looked up in "." and the user
// config directory, and a missing file is not an error. The result is also
// published for GetConfig.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", spec.Name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		for _, p := range getUserConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for _, o := range overrides {
		applyOverrides(v, "", o)
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToByteSizeHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Profile = strings.ToLower(strings.TrimSpace(cfg.Logging.Profile))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// applyOverrides sets nested or dotted override keys on v.
func applyOverrides(v *viper.Viper, prefix string, overrides map[string]any) {
	for k, val := range overrides {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			applyOverrides(v, key, nested)
			continue
		}
		v.Set(key, val)
	}
}

func stringToByteSizeHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		n, err := humanize.ParseBytes(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid byte size %q: %w", data, err)
		}
		return ByteSize(n), nil
	}
}

var (
	validLevels   = []string{"debug", "info", "warn", "error"}
	validProfiles = []string{"console", "structured"}
)

// Validate rejects values no command can run with.
func (c *Config) Validate() error {
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level: %q is not one of %s", c.Logging.Level, strings.Join(validLevels, ", "))
	}
	if !slices.Contains(validProfiles, c.Logging.Profile) {
		return fmt.Errorf("logging.profile: %q is not one of %s", c.Logging.Profile, strings.Join(validProfiles, ", "))
	}
	if c.Download.PartSize < 0 {
		return fmt.Errorf("download.part_size: must not be negative")
	}
	if c.Download.Concurrency < 0 {
		return fmt.Errorf("download.concurrency: must not be negative")
	}
	if c.Download.Timeout < 0 {
		return fmt.Errorf("download.timeout: must not be negative")
	}
	return nil
}

// Redacted returns a copy safe to print: credentials are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Storage.AccessKeyID = mask(c.Storage.AccessKeyID, 4)
	out.Storage.SecretAccessKey = mask(c.Storage.SecretAccessKey, 0)
	return &out
}

func mask(s string, keep int) string {
	if s == "" {
		return ""
	}
	if keep <= 0 || len(s) <= keep {
		return "****"
	}
	return s[:keep] + "****"
}
