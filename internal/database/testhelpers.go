package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/azad25/admin-ai-sub003/internal/crypto"
	"github.com/azad25/admin-ai-sub003/internal/domain"
)

// CreateTestAccount creates an account with the given providers already
// encrypted under key. plaintexts maps provider name to the API key to seal.
func CreateTestAccount(t *testing.T, repo *AccountRepo, key crypto.Key, email string, plaintexts map[string]string) *domain.Account {
	t.Helper()

	ctx := context.Background()
	account, err := repo.CreateAccount(ctx, email)
	require.NoError(t, err)

	if len(plaintexts) == 0 {
		return account
	}

	now := time.Now().UTC()
	var providers []domain.ProviderCredential
	for name, plaintext := range plaintexts {
		envelope, err := crypto.Encrypt(key, []byte(plaintext))
		require.NoError(t, err)
		providers = append(providers, domain.ProviderCredential{
			Provider:        name,
			APIKey:          envelope,
			IsActive:        true,
			IsVerified:      true,
			SelectedModel:   name + "-default",
			AvailableModels: []string{name + "-default"},
			LastVerified:    &now,
		})
	}

	require.NoError(t, repo.Upsert(ctx, account.ID, providers))
	account.Providers = providers
	return account
}

// TruncateAccounts wipes the accounts table between tests.
func TruncateAccounts(t *testing.T, repo *AccountRepo) {
	t.Helper()
	_, err := repo.pool.Exec(context.Background(), `TRUNCATE accounts`)
	require.NoError(t, err)
}

// RandomAccountID returns an ID guaranteed not to exist in a fresh table.
func RandomAccountID() uuid.UUID {
	return uuid.New()
}
