package service

import (
	"context"
	"time"

	"github.com/itchan-dev/authd/shared/blacklist"
	"github.com/itchan-dev/authd/shared/domain"
	"github.com/itchan-dev/authd/shared/logger"
)

type LedgerStorage interface {
	Revoke(ctx context.Context, entry domain.RevocationEntry) (bool, error)
	IsRevoked(ctx context.Context, id domain.TokenId) (bool, error)
	ListByAccount(ctx context.Context, id domain.AccountId) ([]domain.RevocationEntry, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Ledger is the append-only record of revoked refresh tokens. The cache may
// say "revoked" on its own; "not revoked" always comes from storage.
type Ledger struct {
	storage LedgerStorage
	cache   *blacklist.Cache
	now     func() time.Time
}

// NewLedger accepts a nil cache, in which case every lookup hits storage.
func NewLedger(storage LedgerStorage, cache *blacklist.Cache) *Ledger {
	return &Ledger{storage: storage, cache: cache, now: time.Now}
}

// Revoke records entry and reports whether this call was the one that
// revoked it. Storage failures are returned, never swallowed.
func (l *Ledger) Revoke(ctx context.Context, entry domain.RevocationEntry) (bool, error) {
	if entry.RevokedAt.IsZero() {
		entry.RevokedAt = l.now().UTC()
	}
	won, err := l.storage.Revoke(ctx, entry)
	if err != nil {
		return false, err
	}
	if l.cache != nil {
		l.cache.Add(entry.TokenId)
	}
	if won {
		revocationsTotal.WithLabelValues(entry.Reason).Inc()
	}
	return won, nil
}

func (l *Ledger) IsRevoked(ctx context.Context, id domain.TokenId) (bool, error) {
	if l.cache != nil && l.cache.IsRevoked(id) {
		return true, nil
	}
	return l.storage.IsRevoked(ctx, id)
}

func (l *Ledger) ListByAccount(ctx context.Context, id domain.AccountId) ([]domain.RevocationEntry, error) {
	return l.storage.ListByAccount(ctx, id)
}

// Purge drops entries for tokens that have expired on their own.
func (l *Ledger) Purge(ctx context.Context) (int64, error) {
	n, err := l.storage.PurgeExpired(ctx, l.now())
	if err != nil {
		return 0, err
	}
	revocationsPurgedTotal.Add(float64(n))
	return n, nil
}

// StartBackgroundPurge runs Purge every interval until ctx is done.
func (l *Ledger) StartBackgroundPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("started revocation purge", "component", "revocation_purge", "interval", interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := l.Purge(ctx)
				if err != nil {
					logger.Log.Error("revocation purge failed", "component", "revocation_purge", "error", err)
					continue
				}
				if n > 0 {
					logger.Log.Info("purged expired revocations", "component", "revocation_purge", "deleted", n)
				}
			case <-ctx.Done():
				logger.Log.Info("revocation purge shutting down", "component", "revocation_purge")
				return
			}
		}
	}()
}
