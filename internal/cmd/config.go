package cmd

import (
	"errors"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/nimbusget/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect nimbusget configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration nimbusget would run with after merging defaults,
the config file, NIMBUSGET_* environment variables and flags.

Credentials are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	if cfg == nil {
		return exitError(foundry.ExitFailure, "Configuration not loaded", errors.New("internal error"))
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return exitError(foundry.ExitFailure, "Failed to render configuration", err)
	}
	return enc.Close()
}
