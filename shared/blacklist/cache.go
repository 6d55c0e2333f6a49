package blacklist

import (
	"context"
	"sync"
	"time"

	"github.com/itchan-dev/authd/shared/domain"
	"github.com/itchan-dev/authd/shared/logger"
)

// CacheStorage is the read side the cache needs to warm itself.
type CacheStorage interface {
	RecentlyRevoked(ctx context.Context, since time.Time) ([]domain.TokenId, error)
}

// Cache remembers refresh token ids known to be revoked. It only ever answers
// "known revoked"; a miss means "ask the database", never "not revoked".
type Cache struct {
	storage    CacheStorage
	cache      map[domain.TokenId]struct{}
	mu         sync.RWMutex
	refreshTTL time.Duration
}

func NewCache(storage CacheStorage, refreshTTL time.Duration) *Cache {
	return &Cache{
		storage:    storage,
		cache:      make(map[domain.TokenId]struct{}),
		refreshTTL: refreshTTL,
	}
}

// Update reloads revocations newer than refresh TTL plus a 10% buffer for
// clock skew. Older entries belong to tokens that have expired anyway.
func (bc *Cache) Update(ctx context.Context) error {
	since := time.Now().Add(-time.Duration(float64(bc.refreshTTL) * 1.1))

	ids, err := bc.storage.RecentlyRevoked(ctx, since)
	if err != nil {
		return err
	}

	newCache := make(map[domain.TokenId]struct{}, len(ids))
	for _, id := range ids {
		newCache[id] = struct{}{}
	}

	bc.mu.Lock()
	bc.cache = newCache
	bc.mu.Unlock()

	logger.Log.Debug("revocation cache updated",
		"component", "revocation_cache",
		"entries", len(newCache),
		"since", since.Format(time.RFC3339))
	return nil
}

// Add records a revocation made by this process so it takes effect locally
// before the next reload.
func (bc *Cache) Add(id domain.TokenId) {
	bc.mu.Lock()
	bc.cache[id] = struct{}{}
	bc.mu.Unlock()
}

func (bc *Cache) IsRevoked(id domain.TokenId) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	_, ok := bc.cache[id]
	return ok
}

func (bc *Cache) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.cache)
}

// StartBackgroundUpdate refreshes the cache every interval until ctx is done.
func (bc *Cache) StartBackgroundUpdate(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("started revocation cache background updates",
		"component", "revocation_cache",
		"interval", interval,
		"refresh_ttl", bc.refreshTTL)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := bc.Update(ctx); err != nil {
					logger.Log.Error("revocation cache update failed",
						"component", "revocation_cache",
						"error", err)
				}
			case <-ctx.Done():
				logger.Log.Info("revocation cache shutting down",
					"component", "revocation_cache")
				return
			}
		}
	}()
}
