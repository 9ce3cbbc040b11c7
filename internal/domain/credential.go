package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProviderCredential is one configured AI provider for an account. APIKey is
// always an encrypted envelope, never plaintext; the crypto package owns the
// envelope format. Settings is carried opaquely so provider-specific options
// survive rotation untouched.
type ProviderCredential struct {
	Provider        string          `json:"provider"`
	APIKey          string          `json:"apiKey"`
	IsActive        bool            `json:"isActive"`
	IsVerified      bool            `json:"isVerified"`
	SelectedModel   string          `json:"selectedModel"`
	AvailableModels []string        `json:"availableModels"`
	LastVerified    *time.Time      `json:"lastVerified,omitempty"`
	Settings        json.RawMessage `json:"settings,omitempty"`
}

// Account owns its provider list exclusively. The list is replaced wholesale
// on every update; there is no per-element merge.
type Account struct {
	ID        uuid.UUID
	Email     string
	Providers []ProviderCredential
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CredentialStore is the persistence boundary for per-account provider
// credentials. Upsert replaces the entire list in one write: callers doing a
// partial change must List, mutate in memory, then Upsert the full result.
//
// Nothing here locks an account record. A settings update racing a rotation
// is two whole-list writes and the later one wins; callers needing stronger
// consistency must serialize per account themselves.
type CredentialStore interface {
	List(ctx context.Context, accountID uuid.UUID) ([]ProviderCredential, error)
	Get(ctx context.Context, accountID uuid.UUID, provider string) (*ProviderCredential, error)
	Upsert(ctx context.Context, accountID uuid.UUID, providers []ProviderCredential) error
	ListAccountIDs(ctx context.Context) ([]uuid.UUID, error)
}
