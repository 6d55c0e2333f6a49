package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/itchan-dev/authd/shared/blacklist"
	"github.com/itchan-dev/authd/shared/domain"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
	jwt_internal "github.com/itchan-dev/authd/shared/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessTTL  = 5 * time.Minute
	testRefreshTTL = 24 * time.Hour
)

type sessionsFixture struct {
	sessions    *Sessions
	credentials *Credentials
	accounts    *MockAccountStorage
	revocations *MockLedgerStorage
	ledger      *Ledger
	jwt         *jwt_internal.Jwt
	clock       *testClock
	account     domain.Account
}

func newSessionsFixture(t *testing.T) *sessionsFixture {
	t.Helper()
	f := &sessionsFixture{
		accounts:    &MockAccountStorage{},
		revocations: &MockLedgerStorage{},
		clock:       newTestClock(),
	}
	f.credentials = newTestCredentials(t, f.accounts)
	f.jwt = jwt_internal.New("test-secret", "authd", testAccessTTL, testRefreshTTL, jwt_internal.WithClock(f.clock.Now))
	f.ledger = NewLedger(f.revocations, blacklist.NewCache(f.revocations, testRefreshTTL))
	f.ledger.now = f.clock.Now
	f.sessions = NewSessions(f.credentials, f.jwt, f.ledger)

	account, err := f.credentials.Create(context.Background(),
		domain.Credentials{Email: "alice@example.com", Password: "password1"}, domain.Profile{}, domain.Roles{})
	require.NoError(t, err)
	f.account = account
	return f
}

func (f *sessionsFixture) login(t *testing.T) domain.TokenPair {
	t.Helper()
	pair, err := f.sessions.Login(context.Background(), domain.Credentials{Email: "alice@example.com", Password: "password1"})
	require.NoError(t, err)
	return pair
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newSessionsFixture(t)

	t.Run("issues verifiable pair", func(t *testing.T) {
		pair := f.login(t)

		principal, err := f.sessions.Authorize(ctx, pair.Access)
		require.NoError(t, err)
		assert.Equal(t, f.account.Id, principal.AccountId)
		assert.Equal(t, "alice@example.com", principal.Email)

		claims, err := f.jwt.VerifyRefresh(pair.Refresh)
		require.NoError(t, err)
		assert.NotEmpty(t, claims.TokenId)
	})

	t.Run("each login gets a distinct refresh jti", func(t *testing.T) {
		a, _ := f.jwt.VerifyRefresh(f.login(t).Refresh)
		b, _ := f.jwt.VerifyRefresh(f.login(t).Refresh)
		assert.NotEqual(t, a.TokenId, b.TokenId)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		_, errWrong := f.sessions.Login(ctx, domain.Credentials{Email: "alice@example.com", Password: "wrong-password"})
		_, errMissing := f.sessions.Login(ctx, domain.Credentials{Email: "ghost@example.com", Password: "password1"})

		assert.ErrorIs(t, errWrong, internal_errors.ErrInvalidCredentials)
		assert.ErrorIs(t, errMissing, internal_errors.ErrInvalidCredentials)
		assert.Equal(t, errWrong.Error(), errMissing.Error())
		assert.Equal(t, internal_errors.KindOf(errWrong), internal_errors.KindOf(errMissing))
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates: old token is revoked after use", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)

		next, err := f.sessions.Refresh(ctx, pair.Refresh)
		require.NoError(t, err)
		assert.NotEqual(t, pair.Refresh, next.Refresh)

		_, err = f.sessions.Refresh(ctx, pair.Refresh)
		assert.ErrorIs(t, err, internal_errors.ErrTokenRevoked)

		_, err = f.sessions.Refresh(ctx, next.Refresh)
		assert.NoError(t, err, "the rotated-in token is live")

		entries, err := f.ledger.ListByAccount(ctx, f.account.Id)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, e := range entries {
			assert.Equal(t, domain.ReasonRotated, e.Reason)
		}
	})

	t.Run("revoked token is rejected even with a cold cache", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)
		claims, err := f.jwt.VerifyRefresh(pair.Refresh)
		require.NoError(t, err)
		// revoked by another instance: storage knows, local cache does not
		_, err = f.revocations.Revoke(ctx, domain.RevocationEntry{TokenId: claims.TokenId, AccountId: f.account.Id})
		require.NoError(t, err)

		_, err = f.sessions.Refresh(ctx, pair.Refresh)
		assert.ErrorIs(t, err, internal_errors.ErrTokenRevoked)
	})

	t.Run("expired", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)
		f.clock.Advance(testRefreshTTL + time.Second)

		_, err := f.sessions.Refresh(ctx, pair.Refresh)
		assert.ErrorIs(t, err, internal_errors.ErrTokenExpired)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)

		_, err := f.sessions.Refresh(ctx, pair.Access)
		assert.ErrorIs(t, err, internal_errors.ErrTokenMalformed)
		assert.Zero(t, f.revocations.size())
	})

	t.Run("inactive account", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)
		_, err := f.credentials.SetActive(ctx, f.account.Id, false)
		require.NoError(t, err)

		next, err := f.sessions.Refresh(ctx, pair.Refresh)
		assert.ErrorIs(t, err, internal_errors.ErrInactiveAccount)
		assert.Empty(t, next.Refresh)
		assert.Zero(t, f.revocations.size(), "a rejected refresh does not consume the token")
	})

	t.Run("ledger read failure gives no pair", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)
		f.revocations.IsRevokedFunc = func(ctx context.Context, id domain.TokenId) (bool, error) {
			return false, errors.New("db down")
		}

		next, err := f.sessions.Refresh(ctx, pair.Refresh)
		require.Error(t, err)
		assert.Equal(t, internal_errors.KindUnhandledInternal, internal_errors.KindOf(err))
		assert.Empty(t, next)
	})

	t.Run("ledger write failure gives no pair", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)
		f.revocations.RevokeFunc = func(ctx context.Context, entry domain.RevocationEntry) (bool, error) {
			return false, errors.New("disk full")
		}

		next, err := f.sessions.Refresh(ctx, pair.Refresh)
		assert.ErrorContains(t, err, "disk full")
		assert.Empty(t, next)
	})

	t.Run("losing the rotation race discards the new pair", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)
		f.revocations.RevokeFunc = func(ctx context.Context, entry domain.RevocationEntry) (bool, error) {
			return false, nil
		}

		next, err := f.sessions.Refresh(ctx, pair.Refresh)
		assert.ErrorIs(t, err, internal_errors.ErrTokenRevoked)
		assert.Empty(t, next)
	})

	t.Run("concurrent refreshes yield exactly one pair", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)

		const n = 16
		var wg sync.WaitGroup
		results := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = f.sessions.Refresh(ctx, pair.Refresh)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range results {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, internal_errors.ErrTokenRevoked)
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("twice is success", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)

		require.NoError(t, f.sessions.Logout(ctx, pair.Refresh))
		require.NoError(t, f.sessions.Logout(ctx, pair.Refresh))
		assert.Equal(t, 1, f.revocations.size())

		entries, err := f.ledger.ListByAccount(ctx, f.account.Id)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.ReasonLogout, entries[0].Reason)
	})

	t.Run("expired token can still be logged out", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)
		f.clock.Advance(testRefreshTTL + time.Hour)

		require.NoError(t, f.sessions.Logout(ctx, pair.Refresh))
		assert.Equal(t, 1, f.revocations.size())
	})

	t.Run("garbage is malformed", func(t *testing.T) {
		f := newSessionsFixture(t)

		err := f.sessions.Logout(ctx, "not.a.token")
		assert.ErrorIs(t, err, internal_errors.ErrTokenMalformed)
	})

	t.Run("foreign signature is malformed", func(t *testing.T) {
		f := newSessionsFixture(t)
		other := jwt_internal.New("other-secret", "authd", testAccessTTL, testRefreshTTL)
		pair, err := other.Issue(f.account)
		require.NoError(t, err)

		err = f.sessions.Logout(ctx, pair.Refresh)
		assert.ErrorIs(t, err, internal_errors.ErrTokenMalformed)
	})

	t.Run("store failure is reported", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)
		f.revocations.RevokeFunc = func(ctx context.Context, entry domain.RevocationEntry) (bool, error) {
			return false, errors.New("db down")
		}

		err := f.sessions.Logout(ctx, pair.Refresh)
		require.Error(t, err)
		assert.Equal(t, internal_errors.KindUnhandledInternal, internal_errors.KindOf(err))
	})
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("access token survives logout until expiry", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)
		require.NoError(t, f.sessions.Logout(ctx, pair.Refresh))

		_, err := f.sessions.Authorize(ctx, pair.Access)
		assert.NoError(t, err)

		f.clock.Advance(testAccessTTL + time.Second)
		_, err = f.sessions.Authorize(ctx, pair.Access)
		assert.ErrorIs(t, err, internal_errors.ErrTokenExpired)
	})

	t.Run("never consults the ledger", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)
		f.revocations.IsRevokedFunc = func(ctx context.Context, id domain.TokenId) (bool, error) {
			t.Fatal("authorize must not read the ledger")
			return false, nil
		}

		_, err := f.sessions.Authorize(ctx, pair.Access)
		assert.NoError(t, err)
	})

	t.Run("refresh token is rejected", func(t *testing.T) {
		f := newSessionsFixture(t)
		pair := f.login(t)

		_, err := f.sessions.Authorize(ctx, pair.Refresh)
		assert.ErrorIs(t, err, internal_errors.ErrTokenMalformed)
	})
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newSessionsFixture(t)

	_, err := f.credentials.Create(ctx, domain.Credentials{Email: "carol@example.com", Password: "s3cret-pass"}, domain.Profile{FirstName: "Carol"}, domain.Roles{})
	require.NoError(t, err)

	first, err := f.sessions.Login(ctx, domain.Credentials{Email: "carol@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	second, err := f.sessions.Refresh(ctx, first.Refresh)
	require.NoError(t, err)

	_, err = f.sessions.Refresh(ctx, first.Refresh)
	assert.ErrorIs(t, err, internal_errors.ErrTokenRevoked)

	require.NoError(t, f.sessions.Logout(ctx, second.Refresh))

	_, err = f.sessions.Refresh(ctx, second.Refresh)
	assert.ErrorIs(t, err, internal_errors.ErrTokenRevoked)
}
