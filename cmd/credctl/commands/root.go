// Package commands implements the credctl CLI.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/azad25/admin-ai-sub003/internal/config"
	"github.com/azad25/admin-ai-sub003/internal/logging"
	"github.com/azad25/admin-ai-sub003/internal/version"
)

// NewRootCommand builds the credctl command tree.
func NewRootCommand() *cobra.Command {
	info := version.Get()

	rootCmd := &cobra.Command{
		Use:   "credctl",
		Short: "Manage encrypted AI provider credentials",
		Long: `credctl operates on the encrypted provider credentials stored per account.

API keys are kept encrypted at rest and only ever decrypted in memory.
Use "verify" to check that stored envelopes decrypt under the configured
key, "rotate" to re-encrypt everything under a new key, "keygen" to mint
a fresh key, and "serve" to run the credential status server.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			logging.Init(logLevel, logFormat)
		},
	}

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(
		NewVerifyCommand(),
		NewRotateCommand(),
		NewKeygenCommand(),
		NewServeCommand(),
	)

	return rootCmd
}

// loadConfig wraps config.Load with a hint for the most common mistake.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	if !cfg.KeyIsRecommendedForm() {
		slog.Warn("CREDENTIAL_ENCRYPTION_KEY is not a 64-char hex key, using legacy raw-text derivation")
	}
	return cfg, nil
}
