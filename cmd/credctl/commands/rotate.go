package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/azad25/admin-ai-sub003/internal/crypto"
	"github.com/azad25/admin-ai-sub003/internal/database"
	"github.com/azad25/admin-ai-sub003/internal/domain"
	"github.com/azad25/admin-ai-sub003/internal/rotation"
)

// dryRunStore lets a rotation exercise the full decrypt/re-encrypt/verify
// path while swallowing the final write.
type dryRunStore struct {
	domain.CredentialStore
}

func (dryRunStore) Upsert(ctx context.Context, accountID uuid.UUID, providers []domain.ProviderCredential) error {
	return nil
}

// NewRotateCommand re-encrypts stored credentials under a new key.
func NewRotateCommand() *cobra.Command {
	var (
		accountID      string
		all            bool
		newKeyEnv      string
		workers        int
		accountTimeout time.Duration
		dryRun         bool
	)

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Re-encrypt stored credentials under a new key",
		Long: `Rotate decrypts every provider credential with the current
CREDENTIAL_ENCRYPTION_KEY and re-encrypts it with the key read from the
environment variable named by --new-key-env.

An account is rotated atomically: either all of its credentials are
re-encrypted and written back in one update, or the account is left
untouched and reported as failed. Accounts are independent, a failure
in one never blocks the others.

Examples:
  NEW_CREDENTIAL_ENCRYPTION_KEY=$(credctl keygen) credctl rotate --all
  credctl rotate --account 6f1c9a4e-... --dry-run
  credctl rotate --all --workers 10 --account-timeout 30s`,
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
			oldKey, err := cfg.LoadKey()
			if err != nil {
				return err
			}

			newSecret := os.Getenv(newKeyEnv)
			if newSecret == "" {
				return &crypto.ConfigError{Reason: newKeyEnv + " is not set"}
			}
			newKey, err := crypto.LoadKey(newSecret)
			if err != nil {
				return fmt.Errorf("new key: %w", err)
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

			var store domain.CredentialStore = repo
			if dryRun {
				store = dryRunStore{repo}
				fmt.Fprintln(cmd.OutOrStdout(), "dry run: verifying re-encryption, no writes will be made")
			}

			opts := []rotation.Option{rotation.WithWorkers(workers)}
			if accountTimeout > 0 {
				opts = append(opts, rotation.WithAccountTimeout(accountTimeout))
			}
			coord := rotation.New(store, opts...)

			report := coord.Rotate(ctx, oldKey, newKey, ids)
			printReport(cmd, report)

			if report.FailedCount() > 0 {
				return fmt.Errorf("%d account(s) failed to rotate", report.FailedCount())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account UUID to rotate")
	cmd.Flags().BoolVar(&all, "all", false, "Rotate every account")
	cmd.Flags().StringVar(&newKeyEnv, "new-key-env", "NEW_CREDENTIAL_ENCRYPTION_KEY", "Environment variable holding the new key")
	cmd.Flags().IntVar(&workers, "workers", 5, "Number of accounts rotated concurrently")
	cmd.Flags().DurationVar(&accountTimeout, "account-timeout", 0, "Per-account timeout (0 disables)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decrypt and verify without writing anything back")

	return cmd
}

func printReport(cmd *cobra.Command, report *rotation.Report) {
	out := cmd.OutOrStdout()
	for _, res := range report.Results {
		if res.Rotated() {
			fmt.Fprintf(out, "rotated %s (%d credential(s), %s)\n", res.AccountID, res.Providers, res.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(out, "FAILED  %s: %v\n", res.AccountID, res.Err)
		}
	}
	fmt.Fprintf(out, "%d rotated, %d failed in %s\n", report.RotatedCount(), report.FailedCount(), report.Duration.Round(time.Millisecond))
}
