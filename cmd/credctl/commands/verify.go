package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/azad25/admin-ai-sub003/internal/crypto"
	"github.com/azad25/admin-ai-sub003/internal/database"
	"github.com/azad25/admin-ai-sub003/internal/domain"
	"github.com/azad25/admin-ai-sub003/internal/metrics"
	"github.com/azad25/admin-ai-sub003/internal/server"
)

// NewVerifyCommand checks that stored envelopes decrypt under the configured key.
func NewVerifyCommand() *cobra.Command {
	var (
		accountID string
		all       bool
		reveal    bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify that stored credentials decrypt under the configured key",
		Long: `Verify walks provider credentials and attempts to decrypt each stored
envelope with CREDENTIAL_ENCRYPTION_KEY. Output shows a masked envelope
hint per credential; plaintext stays in memory unless --reveal is set.

--reveal prints decrypted API keys to stdout. It exists for interactive
debugging only. Nothing is ever written to the log either way.

Examples:
  credctl verify --account 6f1c9a4e-8a21-4a7d-9c3b-2f64d1a0b5e7
  credctl verify --all
  credctl verify --account 6f1c9a4e-... --reveal`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if accountID == "" && !all {
				return fmt.Errorf("either --account or --all is required")
			}
			if accountID != "" && all {
				return fmt.Errorf("--account and --all are mutually exclusive")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			key, err := cfg.LoadKey()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := database.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			repo := database.NewAccountRepo(pool)

			ids, err := resolveAccounts(ctx, repo, accountID, all)
			if err != nil {
				return err
			}

			unreadable := 0
			for _, id := range ids {
				n, err := verifyAccount(ctx, cmd, repo, key, id, reveal)
				if err != nil {
					return err
				}
				unreadable += n
			}

			if unreadable > 0 {
				return fmt.Errorf("%d credential(s) failed to decrypt", unreadable)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account UUID to verify")
	cmd.Flags().BoolVar(&all, "all", false, "Verify every account")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print decrypted API keys to stdout (interactive use only)")

	return cmd
}

func verifyAccount(ctx context.Context, cmd *cobra.Command, store domain.CredentialStore, key crypto.Key, accountID uuid.UUID, reveal bool) (unreadable int, err error) {
	providers, err := store.List(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("account %s: %w", accountID, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "account %s (%d credential(s))\n", accountID, len(providers))

	for _, p := range providers {
		plaintext, decErr := crypto.Decrypt(key, p.APIKey)
		if decErr != nil {
			unreadable++
			metrics.VerificationsTotal.WithLabelValues("unreadable").Inc()
			fmt.Fprintf(out, "  %-12s UNREADABLE  %s  (%v)\n", p.Provider, server.MaskEnvelope(p.APIKey), decErr)
			continue
		}
		metrics.VerificationsTotal.WithLabelValues("ok").Inc()
		if reveal {
			fmt.Fprintf(out, "  %-12s ok  %s\n", p.Provider, plaintext)
		} else {
			fmt.Fprintf(out, "  %-12s ok  %s\n", p.Provider, server.MaskEnvelope(p.APIKey))
		}
		crypto.Zero(plaintext)
	}
	return unreadable, nil
}

func resolveAccounts(ctx context.Context, store domain.CredentialStore, accountID string, all bool) ([]uuid.UUID, error) {
	if all {
		return store.ListAccountIDs(ctx)
	}
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, fmt.Errorf("invalid --account %q: %w", accountID, err)
	}
	return []uuid.UUID{id}, nil
}
