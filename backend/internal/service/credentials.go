package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/itchan-dev/authd/shared/domain"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
	"github.com/itchan-dev/authd/shared/logger"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past this length, so longer passwords are refused
// instead of being silently truncated.
const maxPasswordBytes = 72

type AccountStorage interface {
	SaveAccount(ctx context.Context, account domain.Account) (domain.AccountId, error)
	AccountByEmail(ctx context.Context, email domain.Email) (domain.Account, error)
	AccountById(ctx context.Context, id domain.AccountId) (domain.Account, error)
	SetActive(ctx context.Context, id domain.AccountId, active bool) (domain.Account, error)
}

// Credentials owns accounts: hashing, lookup and the active flag.
type Credentials struct {
	storage   AccountStorage
	cost      int
	dummyHash []byte
	policy    *bluemonday.Policy
	now       func() time.Time
}

func NewCredentials(storage AccountStorage, bcryptCost int) (*Credentials, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	// compared against when the account does not exist, so both paths pay one bcrypt
	dummy, err := bcrypt.GenerateFromPassword([]byte("authd-timing-equalizer"), bcryptCost)
	if err != nil {
		return nil, err
	}
	return &Credentials{
		storage:   storage,
		cost:      bcryptCost,
		dummyHash: dummy,
		policy:    bluemonday.StrictPolicy(),
		now:       time.Now,
	}, nil
}

// Authenticate checks a password. Unknown email, wrong password and inactive
// account all yield ErrInvalidCredentials.
func (c *Credentials) Authenticate(ctx context.Context, creds domain.Credentials) (domain.Account, error) {
	email := domain.NormalizeEmail(creds.Email)

	account, err := c.storage.AccountByEmail(ctx, email)
	if err != nil {
		if internal_errors.IsNotFound(err) {
			_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(creds.Password))
			logger.Log.Info("login rejected", "reason", "unknown_account")
			return domain.Account{}, internal_errors.ErrInvalidCredentials
		}
		return domain.Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PassHash), []byte(creds.Password)); err != nil {
		logger.Log.Info("login rejected", "reason", "password_mismatch", "account_id", account.Id)
		return domain.Account{}, internal_errors.ErrInvalidCredentials
	}
	if !account.IsActive {
		logger.Log.Info("login rejected", "reason", "inactive", "account_id", account.Id)
		return domain.Account{}, internal_errors.ErrInvalidCredentials
	}
	return account, nil
}

// Create hashes the password and stores a new active account.
func (c *Credentials) Create(ctx context.Context, creds domain.Credentials, profile domain.Profile, roles domain.Roles) (domain.Account, error) {
	email := domain.NormalizeEmail(creds.Email)
	if email == "" {
		return domain.Account{}, internal_errors.BadRequest("email is required")
	}
	if creds.Password == "" {
		return domain.Account{}, internal_errors.BadRequest("password is required")
	}
	if len(creds.Password) > maxPasswordBytes {
		return domain.Account{}, internal_errors.BadRequest("password must be at most 72 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), c.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return domain.Account{}, internal_errors.BadRequest("password must be at most 72 characters")
		}
		logger.Log.Error("failed to hash password", "error", err)
		return domain.Account{}, err
	}

	account := domain.Account{
		Email:       email,
		PassHash:    string(hash),
		FirstName:   c.sanitize(profile.FirstName),
		LastName:    c.sanitize(profile.LastName),
		IsActive:    true,
		IsStaff:     roles.IsStaff,
		IsSuperuser: roles.IsSuperuser,
		CreatedAt:   c.now().UTC(),
	}
	id, err := c.storage.SaveAccount(ctx, account)
	if err != nil {
		return domain.Account{}, err
	}
	account.Id = id
	logger.Log.Info("account created", "account_id", id, "staff", roles.IsStaff)
	return account, nil
}

func (c *Credentials) Account(ctx context.Context, id domain.AccountId) (domain.Account, error) {
	return c.storage.AccountById(ctx, id)
}

func (c *Credentials) AccountByEmail(ctx context.Context, email domain.Email) (domain.Account, error) {
	return c.storage.AccountByEmail(ctx, domain.NormalizeEmail(email))
}

func (c *Credentials) SetActive(ctx context.Context, id domain.AccountId, active bool) (domain.Account, error) {
	account, err := c.storage.SetActive(ctx, id, active)
	if err != nil {
		return domain.Account{}, err
	}
	logger.Log.Info("account active flag changed", "account_id", id, "active", active)
	return account, nil
}

// sanitize strips markup from display names. The policy escapes entities,
// which would double-escape once the value is JSON encoded, so undo that.
func (c *Credentials) sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(c.policy.Sanitize(s)))
}
