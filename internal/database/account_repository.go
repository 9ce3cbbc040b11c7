package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azad25/admin-ai-sub003/internal/domain"
)

// AccountRepo implements domain.CredentialStore backed by the accounts
// table. The providers column is a JSONB array and every write replaces it
// in full; the repository never patches individual elements.
type AccountRepo struct {
	pool *pgxpool.Pool
}

var _ domain.CredentialStore = (*AccountRepo)(nil)

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// CreateAccount inserts a new account with an empty provider list.
func (r *AccountRepo) CreateAccount(ctx context.Context, email string) (*domain.Account, error) {
	var account domain.Account
	var raw []byte

	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, providers, created_at, updated_at)
		VALUES ($1, '[]', NOW(), NOW())
		RETURNING id, email, providers, created_at, updated_at
	`, email).Scan(&account.ID, &account.Email, &raw, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := json.Unmarshal(raw, &account.Providers); err != nil {
		return nil, fmt.Errorf("failed to decode providers: %w", err)
	}
	return &account, nil
}

// GetAccount loads a full account record.
func (r *AccountRepo) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	var raw []byte

	err := r.pool.QueryRow(ctx, `
		SELECT id, email, providers, created_at, updated_at
		FROM accounts WHERE id = $1
	`, accountID).Scan(&account.ID, &account.Email, &raw, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := json.Unmarshal(raw, &account.Providers); err != nil {
		return nil, fmt.Errorf("failed to decode providers: %w", err)
	}
	return &account, nil
}

func (r *AccountRepo) List(ctx context.Context, accountID uuid.UUID) ([]domain.ProviderCredential, error) {
	var raw []byte

	err := r.pool.QueryRow(ctx,
		`SELECT providers FROM accounts WHERE id = $1`, accountID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	var providers []domain.ProviderCredential
	if err := json.Unmarshal(raw, &providers); err != nil {
		return nil, fmt.Errorf("failed to decode providers: %w", err)
	}
	return providers, nil
}

func (r *AccountRepo) Get(ctx context.Context, accountID uuid.UUID, provider string) (*domain.ProviderCredential, error) {
	providers, err := r.List(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for i := range providers {
		if providers[i].Provider == provider {
			return &providers[i], nil
		}
	}
	return nil, domain.ErrProviderNotFound
}

func (r *AccountRepo) Upsert(ctx context.Context, accountID uuid.UUID, providers []domain.ProviderCredential) error {
	if providers == nil {
		providers = []domain.ProviderCredential{}
	}
	raw, err := json.Marshal(providers)
	if err != nil {
		return fmt.Errorf("failed to encode providers: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts SET providers = $1, updated_at = NOW() WHERE id = $2
	`, raw, accountID)
	if err != nil {
		return fmt.Errorf("failed to upsert providers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepo) ListAccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
