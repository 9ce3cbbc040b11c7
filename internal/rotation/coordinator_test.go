package rotation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azad25/admin-ai-sub003/internal/crypto"
	"github.com/azad25/admin-ai-sub003/internal/domain"
)

// blockingStore parks List until release is closed, honoring the context it
// is called with. It lets tests hold an account in flight at a chosen point.
type blockingStore struct {
	*fakeStore
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		fakeStore: newFakeStore(),
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (s *blockingStore) List(ctx context.Context, accountID uuid.UUID) ([]domain.ProviderCredential, error) {
	s.startOnce.Do(func() { close(s.started) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.release:
	}
	return s.fakeStore.List(ctx, accountID)
}

// fakeStore is an in-memory domain.CredentialStore with failure injection.
type fakeStore struct {
	mu          sync.Mutex
	accounts    map[uuid.UUID][]domain.ProviderCredential
	failUpsert  map[uuid.UUID]error
	listCalls   atomic.Int32
	upsertCalls atomic.Int32

	// concurrency tracking
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:   make(map[uuid.UUID][]domain.ProviderCredential),
		failUpsert: make(map[uuid.UUID]error),
	}
}

func (s *fakeStore) List(ctx context.Context, accountID uuid.UUID) ([]domain.ProviderCredential, error) {
	s.listCalls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxInFlight.Load()
		if n <= seen || s.maxInFlight.CompareAndSwap(seen, n) {
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	providers, ok := s.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := make([]domain.ProviderCredential, len(providers))
	copy(out, providers)
	return out, nil
}

func (s *fakeStore) Get(ctx context.Context, accountID uuid.UUID, provider string) (*domain.ProviderCredential, error) {
	providers, err := s.List(ctx, accountID)
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

func (s *fakeStore) Upsert(ctx context.Context, accountID uuid.UUID, providers []domain.ProviderCredential) error {
	s.upsertCalls.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failUpsert[accountID]; ok {
		return err
	}
	if _, ok := s.accounts[accountID]; !ok {
		return domain.ErrAccountNotFound
	}
	stored := make([]domain.ProviderCredential, len(providers))
	copy(stored, providers)
	s.accounts[accountID] = stored
	return nil
}

func (s *fakeStore) ListAccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeStore) snapshot(accountID uuid.UUID) []domain.ProviderCredential {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ProviderCredential, len(s.accounts[accountID]))
	copy(out, s.accounts[accountID])
	return out
}

func mustKey(t *testing.T) crypto.Key {
	t.Helper()
	var key crypto.Key
	_, err := rand.Read(key[:])
	require.NoError(t, err)
	return key
}

// seedAccount stores providers encrypted under key and returns the account id.
func seedAccount(t *testing.T, store *fakeStore, key crypto.Key, plaintexts map[string]string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	var providers []domain.ProviderCredential
	for name, plaintext := range plaintexts {
		envelope, err := crypto.Encrypt(key, []byte(plaintext))
		require.NoError(t, err)
		providers = append(providers, domain.ProviderCredential{
			Provider: name,
			APIKey:   envelope,
			IsActive: true,
		})
	}
	store.accounts[id] = providers
	return id
}

func TestRotate_SingleAccount(t *testing.T) {
	store := newFakeStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	id := seedAccount(t, store, oldKey, map[string]string{
		"openai":    "sk-openai-secret",
		"anthropic": "sk-ant-secret",
	})

	report := New(store).Rotate(context.Background(), oldKey, newKey, []uuid.UUID{id})

	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.RotatedCount())
	assert.Equal(t, 0, report.FailedCount())

	for _, p := range store.snapshot(id) {
		plaintext, err := crypto.Decrypt(newKey, p.APIKey)
		require.NoError(t, err)
		assert.Contains(t, string(plaintext), "secret")
	}
}

func TestRotate_PreservesCredentialMetadata(t *testing.T) {
	store := newFakeStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	envelope, err := crypto.Encrypt(oldKey, []byte("sk-x"))
	require.NoError(t, err)

	id := uuid.New()
	store.accounts[id] = []domain.ProviderCredential{{
		Provider:        "anthropic",
		APIKey:          envelope,
		IsActive:        true,
		IsVerified:      true,
		SelectedModel:   "claude-sonnet-4-5",
		AvailableModels: []string{"claude-sonnet-4-5", "claude-haiku-4-5"},
		Settings:        []byte(`{"maxTokens":4096}`),
	}}

	report := New(store).Rotate(context.Background(), oldKey, newKey, []uuid.UUID{id})
	require.Equal(t, 1, report.RotatedCount())

	got := store.snapshot(id)[0]
	assert.NotEqual(t, envelope, got.APIKey)
	assert.True(t, got.IsActive)
	assert.True(t, got.IsVerified)
	assert.Equal(t, "claude-sonnet-4-5", got.SelectedModel)
	assert.Equal(t, []string{"claude-sonnet-4-5", "claude-haiku-4-5"}, got.AvailableModels)
	assert.Equal(t, `{"maxTokens":4096}`, string(got.Settings))
}

func TestRotate_CorruptedProviderLeavesAccountUntouched(t *testing.T) {
	store := newFakeStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	id := seedAccount(t, store, oldKey, map[string]string{"openai": "sk-good"})

	// Second provider with a corrupted envelope.
	store.accounts[id] = append(store.accounts[id], domain.ProviderCredential{
		Provider: "anthropic",
		APIKey:   "nocolonhere",
	})
	before := store.snapshot(id)

	report := New(store).Rotate(context.Background(), oldKey, newKey, []uuid.UUID{id})

	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.FailedCount())

	var acctErr *AccountError
	require.ErrorAs(t, report.Results[0].Err, &acctErr)
	assert.Contains(t, acctErr.Providers, "anthropic")
	assert.NotContains(t, acctErr.Providers, "openai")

	// No write happened, stored list is identical.
	assert.Equal(t, before, store.snapshot(id))
	assert.Equal(t, int32(0), store.upsertCalls.Load())
}

func TestRotate_IndependentAccounts(t *testing.T) {
	store := newFakeStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	corrupted := uuid.New()
	store.accounts[corrupted] = []domain.ProviderCredential{{
		Provider: "openai",
		APIKey:   "zz:zz",
	}}
	healthy := seedAccount(t, store, oldKey, map[string]string{"anthropic": "sk-ant-ok"})

	report := New(store).Rotate(context.Background(), oldKey, newKey, []uuid.UUID{corrupted, healthy})

	require.Len(t, report.Results, 2)
	assert.Equal(t, 1, report.RotatedCount())
	assert.Equal(t, 1, report.FailedCount())

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, corrupted, failures[0].AccountID)

	plaintext, err := crypto.Decrypt(newKey, store.snapshot(healthy)[0].APIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-ok", string(plaintext))
}

func TestRotate_WrongOldKey(t *testing.T) {
	store := newFakeStore()
	actualKey, wrongKey, newKey := mustKey(t), mustKey(t), mustKey(t)

	// Several providers: a wrong key slips past the CBC padding check on a
	// single envelope roughly once in 256 attempts, but never on all of them.
	id := seedAccount(t, store, actualKey, map[string]string{
		"openai":    "sk-a",
		"anthropic": "sk-b",
		"gemini":    "sk-c",
	})
	before := store.snapshot(id)

	report := New(store).Rotate(context.Background(), wrongKey, newKey, []uuid.UUID{id})

	assert.Equal(t, 1, report.FailedCount())
	assert.Equal(t, before, store.snapshot(id))
}

func TestRotate_UpsertFailureReported(t *testing.T) {
	store := newFakeStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	id := seedAccount(t, store, oldKey, map[string]string{"openai": "sk-x"})
	storeErr := errors.New("connection reset")
	store.failUpsert[id] = storeErr

	report := New(store).Rotate(context.Background(), oldKey, newKey, []uuid.UUID{id})

	require.Len(t, report.Results, 1)
	require.Error(t, report.Results[0].Err)
	assert.ErrorIs(t, report.Results[0].Err, storeErr)
	// One attempt, no automatic retry.
	assert.Equal(t, int32(1), store.upsertCalls.Load())
}

func TestRotate_UnknownAccount(t *testing.T) {
	store := newFakeStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	report := New(store).Rotate(context.Background(), oldKey, newKey, []uuid.UUID{uuid.New()})

	require.Len(t, report.Results, 1)
	assert.ErrorIs(t, report.Results[0].Err, domain.ErrAccountNotFound)
}

func TestRotate_EmptyProviderList(t *testing.T) {
	store := newFakeStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	id := uuid.New()
	store.accounts[id] = nil

	report := New(store).Rotate(context.Background(), oldKey, newKey, []uuid.UUID{id})

	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Rotated())
	assert.Equal(t, int32(0), store.upsertCalls.Load())
}

func TestRotate_CanceledContext(t *testing.T) {
	store := newFakeStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		ids = append(ids, seedAccount(t, store, oldKey, map[string]string{"openai": fmt.Sprintf("sk-%d", i)}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := New(store).Rotate(ctx, oldKey, newKey, ids)

	require.Len(t, report.Results, 4)
	assert.Equal(t, 4, report.FailedCount())
	for _, res := range report.Failures() {
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	// Nothing was written.
	assert.Equal(t, int32(0), store.upsertCalls.Load())
}

func TestRotate_BoundedConcurrency(t *testing.T) {
	store := newFakeStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	var ids []uuid.UUID
	for i := 0; i < 20; i++ {
		ids = append(ids, seedAccount(t, store, oldKey, map[string]string{"openai": fmt.Sprintf("sk-%d", i)}))
	}

	report := New(store, WithWorkers(2)).Rotate(context.Background(), oldKey, newKey, ids)

	assert.Equal(t, 20, report.RotatedCount())
	assert.LessOrEqual(t, store.maxInFlight.Load(), int32(2))
}

func TestRotate_SecondRotationUsesFreshIVs(t *testing.T) {
	store := newFakeStore()
	k1, k2 := mustKey(t), mustKey(t)

	id := seedAccount(t, store, k1, map[string]string{"openai": "sk-x"})

	New(store).Rotate(context.Background(), k1, k2, []uuid.UUID{id})
	first := store.snapshot(id)[0].APIKey

	// Rotate back and forward again; envelopes must differ every time.
	New(store).Rotate(context.Background(), k2, k1, []uuid.UUID{id})
	New(store).Rotate(context.Background(), k1, k2, []uuid.UUID{id})
	second := store.snapshot(id)[0].APIKey

	assert.NotEqual(t, first, second)

	plaintext, err := crypto.Decrypt(k2, second)
	require.NoError(t, err)
	assert.Equal(t, "sk-x", string(plaintext))
}

func TestRotate_AccountTimeoutReportedAsFailure(t *testing.T) {
	store := newBlockingStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	id := seedAccount(t, store.fakeStore, oldKey, map[string]string{"openai": "sk-x"})
	before := store.snapshot(id)

	// release stays closed off: the account can only end via its deadline.
	coord := New(store, WithAccountTimeout(20*time.Millisecond))
	report := coord.Rotate(context.Background(), oldKey, newKey, []uuid.UUID{id})

	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.FailedCount())
	assert.ErrorIs(t, report.Results[0].Err, context.DeadlineExceeded)

	assert.Equal(t, before, store.snapshot(id))
	assert.Equal(t, int32(0), store.upsertCalls.Load())
}

func TestRotate_InFlightAccountCompletesAfterCancel(t *testing.T) {
	store := newBlockingStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	id := seedAccount(t, store.fakeStore, oldKey, map[string]string{"openai": "sk-x"})

	ctx, cancel := context.WithCancel(context.Background())

	var report *Report
	done := make(chan struct{})
	go func() {
		defer close(done)
		report = New(store).Rotate(ctx, oldKey, newKey, []uuid.UUID{id})
	}()

	// Cancel the batch while the account is mid-rotation, then let it run.
	<-store.started
	cancel()
	close(store.release)
	<-done

	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.RotatedCount())
	assert.Equal(t, int32(1), store.upsertCalls.Load())

	plaintext, err := crypto.Decrypt(newKey, store.snapshot(id)[0].APIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-x", string(plaintext))
}

func TestRotate_FakeClockDurations(t *testing.T) {
	store := newBlockingStore()
	oldKey, newKey := mustKey(t), mustKey(t)
	clock := clockwork.NewFakeClock()

	id := seedAccount(t, store.fakeStore, oldKey, map[string]string{"openai": "sk-x"})

	var report *Report
	done := make(chan struct{})
	go func() {
		defer close(done)
		report = New(store, WithClock(clock)).Rotate(context.Background(), oldKey, newKey, []uuid.UUID{id})
	}()

	<-store.started
	clock.Advance(3 * time.Second)
	close(store.release)
	<-done

	require.Equal(t, 1, report.RotatedCount())
	assert.Equal(t, 3*time.Second, report.Results[0].Duration)
	assert.Equal(t, 3*time.Second, report.Duration)
}

func TestRotate_PreservesEnvelopeFormat(t *testing.T) {
	store := newFakeStore()
	oldKey, newKey := mustKey(t), mustKey(t)

	cbcEnvelope, err := crypto.Encrypt(oldKey, []byte("sk-cbc"))
	require.NoError(t, err)
	gcmEnvelope, err := crypto.EncryptAEAD(oldKey, []byte("sk-gcm"))
	require.NoError(t, err)

	id := uuid.New()
	store.accounts[id] = []domain.ProviderCredential{
		{Provider: "openai", APIKey: cbcEnvelope},
		{Provider: "anthropic", APIKey: gcmEnvelope},
	}

	report := New(store).Rotate(context.Background(), oldKey, newKey, []uuid.UUID{id})
	require.Equal(t, 1, report.RotatedCount())

	got := store.snapshot(id)
	assert.False(t, crypto.IsAEAD(got[0].APIKey))
	assert.True(t, crypto.IsAEAD(got[1].APIKey))

	for i, want := range []string{"sk-cbc", "sk-gcm"} {
		plaintext, err := crypto.Decrypt(newKey, got[i].APIKey)
		require.NoError(t, err)
		assert.Equal(t, want, string(plaintext))
	}
}

func TestAccountError_MessageListsProviders(t *testing.T) {
	err := &AccountError{
		AccountID: uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		Providers: map[string]error{
			"openai":    &crypto.FormatError{Reason: "expected iv:ciphertext"},
			"anthropic": &crypto.CryptoError{Reason: "padding check failed"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "11111111-2222-3333-4444-555555555555")
	assert.Contains(t, msg, "anthropic")
	assert.Contains(t, msg, "openai")
	// Providers are listed deterministically, sorted by name.
	assert.Less(t, strings.Index(msg, "anthropic"), strings.Index(msg, "openai"))
}
