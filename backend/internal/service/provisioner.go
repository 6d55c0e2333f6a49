package service

import (
	"context"
	"errors"

	"github.com/itchan-dev/authd/shared/domain"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
	"github.com/itchan-dev/authd/shared/logger"
)

type ProvisionStore interface {
	AccountByEmail(ctx context.Context, email domain.Email) (domain.Account, error)
	Create(ctx context.Context, creds domain.Credentials, profile domain.Profile, roles domain.Roles) (domain.Account, error)
}

type Provisioner struct {
	store ProvisionStore
}

func NewProvisioner(store ProvisionStore) *Provisioner {
	return &Provisioner{store: store}
}

// EnsurePrivilegedAccount creates a superuser unless the email is taken.
// An existing account is left untouched, password included. Losing a
// creation race to another instance counts as success.
func (p *Provisioner) EnsurePrivilegedAccount(ctx context.Context, email domain.Email, password domain.Password) (bool, error) {
	email = domain.NormalizeEmail(email)

	_, err := p.store.AccountByEmail(ctx, email)
	if err == nil {
		logger.Log.Info("privileged account already exists", "component", "bootstrap")
		return false, nil
	}
	if !internal_errors.IsNotFound(err) {
		return false, err
	}

	account, err := p.store.Create(ctx,
		domain.Credentials{Email: email, Password: password},
		domain.Profile{},
		domain.Roles{IsStaff: true, IsSuperuser: true},
	)
	if err != nil {
		if errors.Is(err, internal_errors.ErrDuplicateAccount) {
			logger.Log.Info("privileged account created concurrently", "component", "bootstrap")
			return false, nil
		}
		return false, err
	}

	logger.Log.Info("privileged account created", "component", "bootstrap", "account_id", account.Id)
	return true, nil
}
