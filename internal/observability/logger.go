// Package observability holds the process-wide CLI logger.
package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging profiles.
const (
	// ProfileConsole renders human-readable lines.
	ProfileConsole = "console"

	// ProfileStructured renders one JSON object per line.
	ProfileStructured = "structured"
)

// CLILogger is the logger used by commands. It writes to stderr so stdout
// stays reserved for command output. Nop until InitCLILogger runs.
var CLILogger = zap.NewNop()

// InitCLILogger replaces CLILogger with a stderr logger for level and profile.
func InitCLILogger(level, profile string) error {
	logger, err := NewCLILogger(os.Stderr, level, profile)
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// NewCLILogger builds a logger writing to w.
func NewCLILogger(w io.Writer, level, profile string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var enc zapcore.Encoder
	switch strings.ToLower(profile) {
	case ProfileStructured:
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	case ProfileConsole, "":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cfg.CallerKey = ""
		enc = zapcore.NewConsoleEncoder(cfg)
	default:
		return nil, fmt.Errorf("invalid log profile %q (expected %s or %s)", profile, ProfileConsole, ProfileStructured)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), lvl)
	return zap.New(core), nil
}
