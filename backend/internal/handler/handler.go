package handler

import (
	"context"

	"github.com/itchan-dev/authd/backend/internal/service"
	"github.com/itchan-dev/authd/shared/config"
	"github.com/itchan-dev/authd/shared/domain"
)

// AccountService is what the HTTP layer needs from the credential store.
type AccountService interface {
	Create(ctx context.Context, creds domain.Credentials, profile domain.Profile, roles domain.Roles) (domain.Account, error)
	Account(ctx context.Context, id domain.AccountId) (domain.Account, error)
	SetActive(ctx context.Context, id domain.AccountId, active bool) (domain.Account, error)
}

type RevocationLister interface {
	ListByAccount(ctx context.Context, id domain.AccountId) ([]domain.RevocationEntry, error)
}

// HealthChecker backs the readiness probe.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	sessions    service.SessionService
	accounts    AccountService
	revocations RevocationLister
	health      HealthChecker
	cfg         *config.Config
}

func New(sessions service.SessionService, accounts AccountService, revocations RevocationLister, health HealthChecker, cfg *config.Config) *Handler {
	return &Handler{
		sessions:    sessions,
		accounts:    accounts,
		revocations: revocations,
		health:      health,
		cfg:         cfg,
	}
}
