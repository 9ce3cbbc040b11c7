// Package rotation re-encrypts stored provider credentials under a new key.
//
// Accounts are independent units of work: each one is listed, decrypted,
// re-encrypted, verified, and persisted in a single whole-list write, or not
// written at all. Failures in one account never affect another, and the
// batch always runs to completion with a per-account report.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/azad25/admin-ai-sub003/internal/crypto"
	"github.com/azad25/admin-ai-sub003/internal/domain"
	"github.com/azad25/admin-ai-sub003/internal/logging"
	"github.com/azad25/admin-ai-sub003/internal/metrics"
)

const defaultWorkers = 5

// Coordinator drives batch re-encryption across accounts.
type Coordinator struct {
	store          domain.CredentialStore
	clock          clockwork.Clock
	workers        int
	accountTimeout time.Duration
}

type Option func(*Coordinator)

// WithWorkers bounds the number of accounts rotated concurrently.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithAccountTimeout applies a deadline to each account's rotation. A
// timed-out account is reported as failed and is retryable; its stored
// state is untouched.
func WithAccountTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.accountTimeout = d
	}
}

// WithClock substitutes the clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

func New(store domain.CredentialStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		clock:   clockwork.NewRealClock(),
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rotate re-encrypts every credential of every listed account from oldKey to
// newKey. Cancellation is honored at account granularity: accounts not yet
// started are reported as failed with the cancellation cause, while accounts
// already in flight run to completion or clean failure so a partially
// re-encrypted list is never persisted.
func (c *Coordinator) Rotate(ctx context.Context, oldKey, newKey crypto.Key, accountIDs []uuid.UUID) *Report {
	start := c.clock.Now()
	slog.Info("starting key rotation", "accounts", len(accountIDs), "workers", c.workers)

	results := make([]AccountResult, len(accountIDs))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.workers)

	for i, accountID := range accountIDs {
		wg.Add(1)
		go func(idx int, id uuid.UUID) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := ctx.Err(); err != nil {
				results[idx] = AccountResult{
					AccountID: id,
					Err:       fmt.Errorf("rotation not started: %w", err),
				}
				metrics.RotationAccountsTotal.WithLabelValues("failed").Inc()
				return
			}

			results[idx] = c.rotateAccount(ctx, oldKey, newKey, id)
		}(i, accountID)
	}
	wg.Wait()

	report := &Report{Results: results, Duration: c.clock.Since(start)}
	slog.Info("key rotation finished",
		"accounts", len(accountIDs),
		"rotated", report.RotatedCount(),
		"failed", report.FailedCount(),
		"duration", report.Duration)
	return report
}

func (c *Coordinator) rotateAccount(ctx context.Context, oldKey, newKey crypto.Key, accountID uuid.UUID) AccountResult {
	start := c.clock.Now()
	log := logging.WithAccount(accountID.String())

	// An account already in flight must finish cleanly even if the batch is
	// canceled, so only the per-account timeout applies from here on.
	acctCtx := context.WithoutCancel(ctx)
	if c.accountTimeout > 0 {
		var cancel context.CancelFunc
		acctCtx, cancel = context.WithTimeout(acctCtx, c.accountTimeout)
		defer cancel()
	}

	result := func() AccountResult {
		providers, err := c.store.List(acctCtx, accountID)
		if err != nil {
			return AccountResult{AccountID: accountID, Err: fmt.Errorf("failed to list providers: %w", err)}
		}
		if len(providers) == 0 {
			log.Debug("no providers configured, nothing to rotate")
			return AccountResult{AccountID: accountID}
		}

		updated := make([]domain.ProviderCredential, len(providers))
		copy(updated, providers)
		failed := make(map[string]error)

		for i, p := range providers {
			envelope, err := c.reencrypt(oldKey, newKey, p.APIKey)
			if err != nil {
				recordDecryptFailure(err)
				logging.WithProvider(accountID.String(), p.Provider).Warn("credential failed re-encryption", "error", err)
				failed[p.Provider] = err
				continue
			}
			updated[i].APIKey = envelope
		}

		if len(failed) > 0 {
			// All-or-nothing per account: discard every computed envelope.
			return AccountResult{
				AccountID: accountID,
				Providers: len(providers),
				Err:       &AccountError{AccountID: accountID, Providers: failed},
			}
		}

		if err := c.store.Upsert(acctCtx, accountID, updated); err != nil {
			return AccountResult{
				AccountID: accountID,
				Providers: len(providers),
				Err:       fmt.Errorf("verified but failed to persist: %w", err),
			}
		}

		metrics.RotationProvidersTotal.Add(float64(len(updated)))
		log.Info("account rotated", "providers", len(updated))
		return AccountResult{AccountID: accountID, Providers: len(providers)}
	}()

	result.Duration = c.clock.Since(start)
	metrics.RotationAccountDuration.Observe(result.Duration.Seconds())

	switch {
	case !result.Rotated():
		metrics.RotationAccountsTotal.WithLabelValues("failed").Inc()
		log.Warn("account rotation failed", "error", result.Err)
	case result.Providers == 0:
		metrics.RotationAccountsTotal.WithLabelValues("skipped").Inc()
	default:
		metrics.RotationAccountsTotal.WithLabelValues("rotated").Inc()
	}
	return result
}

// reencrypt opens one envelope under oldKey, seals the recovered plaintext
// under newKey, and round-trip verifies the new envelope before returning
// it. The new envelope keeps the format the credential already used, so an
// authenticated envelope is never downgraded by rotation. The plaintext is
// zeroed before return in every path.
func (c *Coordinator) reencrypt(oldKey, newKey crypto.Key, envelope string) (string, error) {
	plaintext, err := crypto.Decrypt(oldKey, envelope)
	if err != nil {
		return "", err
	}
	defer crypto.Zero(plaintext)

	seal := crypto.Encrypt
	if crypto.IsAEAD(envelope) {
		seal = crypto.EncryptAEAD
	}
	reencrypted, err := seal(newKey, plaintext)
	if err != nil {
		return "", err
	}
	if !crypto.Verify(newKey, plaintext, reencrypted) {
		return "", &crypto.CryptoError{Reason: "round-trip verification failed"}
	}
	return reencrypted, nil
}

func recordDecryptFailure(err error) {
	var formatErr *crypto.FormatError
	var cryptoErr *crypto.CryptoError
	switch {
	case errors.As(err, &formatErr):
		metrics.DecryptFailuresTotal.WithLabelValues("format").Inc()
	case errors.As(err, &cryptoErr):
		metrics.DecryptFailuresTotal.WithLabelValues("crypto").Inc()
	default:
		metrics.DecryptFailuresTotal.WithLabelValues("other").Inc()
	}
}
