package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/itchan-dev/authd/shared/domain"
)

// =========================================================================
// Public Methods (satisfy the service.LedgerStorage interface)
// =========================================================================

// Revoke records the jti as revoked. It reports true only for the call that
// actually inserted the row; repeats and concurrent losers get false.
func (s *Storage) Revoke(ctx context.Context, entry domain.RevocationEntry) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.revoke(ctx, s.db, entry)
}

func (s *Storage) IsRevoked(ctx context.Context, id domain.TokenId) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.isRevoked(ctx, s.db, id)
}

// RecentlyRevoked feeds the in-memory cache.
func (s *Storage) RecentlyRevoked(ctx context.Context, since time.Time) ([]domain.TokenId, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.recentlyRevoked(ctx, s.db, since)
}

// ListByAccount returns an account's revocations, newest first.
func (s *Storage) ListByAccount(ctx context.Context, id domain.AccountId) ([]domain.RevocationEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.listByAccount(ctx, s.db, id)
}

// PurgeExpired deletes entries whose token expired before the cutoff. A token
// past its own expiry fails verification without the ledger.
func (s *Storage) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.purgeExpired(ctx, s.db, before)
}

// =========================================================================
// Internal Methods (Core Database Logic)
// =========================================================================

func (s *Storage) revoke(ctx context.Context, q Querier, e domain.RevocationEntry) (bool, error) {
	revokedAt := e.RevokedAt
	if revokedAt.IsZero() {
		revokedAt = time.Now()
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, account_id, revoked_at, expires_at, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (jti) DO NOTHING`,
		e.TokenId, e.AccountId, revokedAt.UTC(), e.ExpiresAt.UTC(), e.Reason,
	)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows for revocation: %w", err)
	}
	return n == 1, nil
}

func (s *Storage) isRevoked(ctx context.Context, q Querier, id domain.TokenId) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return exists, nil
}

func (s *Storage) recentlyRevoked(ctx context.Context, q Querier, since time.Time) ([]domain.TokenId, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT jti
		FROM revoked_tokens
		WHERE revoked_at >= $1
		ORDER BY revoked_at DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent revocations: %w", err)
	}
	defer rows.Close()

	var ids []domain.TokenId
	for rows.Next() {
		var id domain.TokenId
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan revoked jti: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revocations: %w", err)
	}
	return ids, nil
}

func (s *Storage) listByAccount(ctx context.Context, q Querier, accountId domain.AccountId) ([]domain.RevocationEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT jti, account_id, revoked_at, expires_at, reason
		FROM revoked_tokens
		WHERE account_id = $1
		ORDER BY revoked_at DESC`,
		accountId,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query account revocations: %w", err)
	}
	defer rows.Close()

	entries := []domain.RevocationEntry{}
	for rows.Next() {
		var e domain.RevocationEntry
		if err := rows.Scan(&e.TokenId, &e.AccountId, &e.RevokedAt, &e.ExpiresAt, &e.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan revocation entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revocation entries: %w", err)
	}
	return entries, nil
}

func (s *Storage) purgeExpired(ctx context.Context, q Querier, before time.Time) (int64, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM revoked_tokens WHERE expires_at < $1", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge revocations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check purged rows: %w", err)
	}
	return n, nil
}
