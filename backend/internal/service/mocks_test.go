package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/itchan-dev/authd/shared/domain"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
)

// --- Mocks ---

// MockAccountStorage behaves like the accounts table unless a Func overrides it.
type MockAccountStorage struct {
	SaveAccountFunc    func(ctx context.Context, account domain.Account) (domain.AccountId, error)
	AccountByEmailFunc func(ctx context.Context, email domain.Email) (domain.Account, error)
	AccountByIdFunc    func(ctx context.Context, id domain.AccountId) (domain.Account, error)
	SetActiveFunc      func(ctx context.Context, id domain.AccountId, active bool) (domain.Account, error)

	mu       sync.Mutex
	accounts map[domain.AccountId]domain.Account
	nextId   domain.AccountId
	saves    int
}

func (m *MockAccountStorage) SaveAccount(ctx context.Context, account domain.Account) (domain.AccountId, error) {
	if m.SaveAccountFunc != nil {
		return m.SaveAccountFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	for _, a := range m.accounts {
		if a.Email == account.Email {
			return -1, internal_errors.ErrDuplicateAccount
		}
	}
	if m.accounts == nil {
		m.accounts = make(map[domain.AccountId]domain.Account)
	}
	m.nextId++
	account.Id = m.nextId
	m.accounts[account.Id] = account
	return account.Id, nil
}

func (m *MockAccountStorage) AccountByEmail(ctx context.Context, email domain.Email) (domain.Account, error) {
	if m.AccountByEmailFunc != nil {
		return m.AccountByEmailFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return domain.Account{}, internal_errors.NotFound("Account not found")
}

func (m *MockAccountStorage) AccountById(ctx context.Context, id domain.AccountId) (domain.Account, error) {
	if m.AccountByIdFunc != nil {
		return m.AccountByIdFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, internal_errors.NotFound("Account not found")
	}
	return a, nil
}

func (m *MockAccountStorage) SetActive(ctx context.Context, id domain.AccountId, active bool) (domain.Account, error) {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, id, active)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, internal_errors.NotFound("Account not found")
	}
	a.IsActive = active
	m.accounts[id] = a
	return a, nil
}

func (m *MockAccountStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

// MockLedgerStorage behaves like revoked_tokens with ON CONFLICT DO NOTHING.
type MockLedgerStorage struct {
	RevokeFunc          func(ctx context.Context, entry domain.RevocationEntry) (bool, error)
	IsRevokedFunc       func(ctx context.Context, id domain.TokenId) (bool, error)
	RecentlyRevokedFunc func(ctx context.Context, since time.Time) ([]domain.TokenId, error)
	ListByAccountFunc   func(ctx context.Context, id domain.AccountId) ([]domain.RevocationEntry, error)
	PurgeExpiredFunc    func(ctx context.Context, before time.Time) (int64, error)

	mu      sync.Mutex
	entries map[domain.TokenId]domain.RevocationEntry
}

func (m *MockLedgerStorage) Revoke(ctx context.Context, entry domain.RevocationEntry) (bool, error) {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[domain.TokenId]domain.RevocationEntry)
	}
	if _, ok := m.entries[entry.TokenId]; ok {
		return false, nil
	}
	m.entries[entry.TokenId] = entry
	return true, nil
}

func (m *MockLedgerStorage) IsRevoked(ctx context.Context, id domain.TokenId) (bool, error) {
	if m.IsRevokedFunc != nil {
		return m.IsRevokedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	return ok, nil
}

func (m *MockLedgerStorage) RecentlyRevoked(ctx context.Context, since time.Time) ([]domain.TokenId, error) {
	if m.RecentlyRevokedFunc != nil {
		return m.RecentlyRevokedFunc(ctx, since)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []domain.TokenId
	for id, e := range m.entries {
		if !e.RevokedAt.Before(since) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MockLedgerStorage) ListByAccount(ctx context.Context, id domain.AccountId) ([]domain.RevocationEntry, error) {
	if m.ListByAccountFunc != nil {
		return m.ListByAccountFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := []domain.RevocationEntry{}
	for _, e := range m.entries {
		if e.AccountId == id {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RevokedAt.After(entries[j].RevokedAt) })
	return entries, nil
}

func (m *MockLedgerStorage) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	if m.PurgeExpiredFunc != nil {
		return m.PurgeExpiredFunc(ctx, before)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.entries {
		if e.ExpiresAt.Before(before) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *MockLedgerStorage) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// testClock is shared by the token issuer and the ledger in tests.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
