// Command nimbusget downloads one object from S3-compatible storage.
package main

import (
	"os"

	"github.com/3leaps/nimbusget/internal/cmd"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	os.Exit(cmd.Execute())
}
