package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/itchan-dev/authd/shared/domain"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
	sharedpg "github.com/itchan-dev/authd/shared/storage/pg"
)

// =========================================================================
// Public Methods (satisfy the service.AccountStorage interface)
// =========================================================================

// SaveAccount inserts a new account. A taken email is reported as
// ErrDuplicateAccount, which also covers two concurrent registrations racing
// past any earlier existence check.
func (s *Storage) SaveAccount(ctx context.Context, account domain.Account) (domain.AccountId, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.saveAccount(ctx, s.db, account)
}

// AccountByEmail looks an account up by its normalized email.
func (s *Storage) AccountByEmail(ctx context.Context, email domain.Email) (domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.accountBy(ctx, s.db, "email", email)
}

func (s *Storage) AccountById(ctx context.Context, id domain.AccountId) (domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return s.accountBy(ctx, s.db, "id", id)
}

// SetActive flips is_active inside a transaction so the returned row is the
// state that was committed.
func (s *Storage) SetActive(ctx context.Context, id domain.AccountId, active bool) (domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var account domain.Account
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.setActive(ctx, tx, id, active); err != nil {
			return err
		}
		var err error
		account, err = s.accountBy(ctx, tx, "id", id)
		return err
	})
	return account, err
}

// =========================================================================
// Internal Methods (Core Database Logic)
// These methods accept a Querier and are transaction-agnostic.
// =========================================================================

const accountColumns = "id, email, password_hash, first_name, last_name, is_active, is_staff, is_superuser, created_at"

func (s *Storage) saveAccount(ctx context.Context, q Querier, a domain.Account) (domain.AccountId, error) {
	var id domain.AccountId
	err := q.QueryRowContext(ctx, `
		INSERT INTO accounts (email, password_hash, first_name, last_name, is_active, is_staff, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		a.Email, a.PassHash, a.FirstName, a.LastName, a.IsActive, a.IsStaff, a.IsSuperuser,
	).Scan(&id)
	if err != nil {
		if sharedpg.IsUniqueViolation(err) {
			return -1, internal_errors.ErrDuplicateAccount
		}
		return -1, fmt.Errorf("failed to insert account: %w", err)
	}
	return id, nil
}

// accountBy only ever receives a column name from this package.
func (s *Storage) accountBy(ctx context.Context, q Querier, column string, value any) (domain.Account, error) {
	var a domain.Account
	err := q.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE "+column+" = $1", value,
	).Scan(&a.Id, &a.Email, &a.PassHash, &a.FirstName, &a.LastName, &a.IsActive, &a.IsStaff, &a.IsSuperuser, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, internal_errors.NotFound("Account not found")
		}
		return domain.Account{}, fmt.Errorf("failed to query account: %w", err)
	}
	return a, nil
}

func (s *Storage) setActive(ctx context.Context, q Querier, id domain.AccountId, active bool) error {
	result, err := q.ExecContext(ctx, "UPDATE accounts SET is_active = $1 WHERE id = $2", active, id)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for account update: %w", err)
	}
	if n == 0 {
		return internal_errors.NotFound("Account not found")
	}
	return nil
}
