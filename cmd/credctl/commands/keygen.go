package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

// NewKeygenCommand prints a fresh 256-bit key in the recommended hex form.
func NewKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new 256-bit encryption key",
		Long: `Generate a cryptographically random 256-bit key, printed as 64 hex
characters. Store it in CREDENTIAL_ENCRYPTION_KEY (or the new-key
environment variable when rotating).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			buf := make([]byte, 32)
			if _, err := rand.Read(buf); err != nil {
				return fmt.Errorf("generating key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(buf))
			return nil
		},
	}
}
