package setup

import (
	"context"
	"fmt"

	"github.com/itchan-dev/authd/backend/internal/handler"
	"github.com/itchan-dev/authd/backend/internal/service"
	"github.com/itchan-dev/authd/backend/internal/storage/pg"
	"github.com/itchan-dev/authd/shared/blacklist"
	"github.com/itchan-dev/authd/shared/config"
	"github.com/itchan-dev/authd/shared/jwt"
	"github.com/itchan-dev/authd/shared/logger"
	"github.com/itchan-dev/authd/shared/middleware"
	sharedpg "github.com/itchan-dev/authd/shared/storage/pg"
)

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Storage        *pg.Storage
	Cache          *blacklist.Cache
	Ledger         *service.Ledger
	Credentials    *service.Credentials
	Sessions       *service.Sessions
	Provisioner    *service.Provisioner
	Handler        *handler.Handler
	AuthMiddleware *middleware.Auth
}

// SetupDependencies connects to Postgres, applies migrations and wires the
// services on top.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(ctx, cfg.Private.Pg, sharedpg.DefaultConnectionConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	deps, err := newDependencies(cfg, storage)
	if err != nil {
		storage.Cleanup()
		return nil, err
	}
	return deps, nil
}

func newDependencies(cfg *config.Config, storage *pg.Storage) (*Dependencies, error) {
	// a cached entry older than a refresh token lifetime can no longer matter
	cache := blacklist.NewCache(storage, cfg.RefreshTTL())
	ledger := service.NewLedger(storage, cache)

	credentials, err := service.NewCredentials(storage, cfg.Public.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credentials: %w", err)
	}

	tokens := jwt.New(cfg.JwtKey(), cfg.Public.Issuer, cfg.AccessTTL(), cfg.RefreshTTL())
	sessions := service.NewSessions(credentials, tokens, ledger)

	return &Dependencies{
		Config:         cfg,
		Storage:        storage,
		Cache:          cache,
		Ledger:         ledger,
		Credentials:    credentials,
		Sessions:       sessions,
		Provisioner:    service.NewProvisioner(credentials),
		Handler:        handler.New(sessions, credentials, ledger, storage, cfg),
		AuthMiddleware: middleware.NewAuth(sessions),
	}, nil
}

// Bootstrap ensures the configured privileged account exists. It does
// nothing when no bootstrap email is configured.
func (d *Dependencies) Bootstrap(ctx context.Context) error {
	b := d.Config.Private.Bootstrap
	if b.Email == "" {
		return nil
	}
	if b.Password == "" {
		return fmt.Errorf("bootstrap password is required when bootstrap email is set")
	}
	created, err := d.Provisioner.EnsurePrivilegedAccount(ctx, b.Email, b.Password)
	if err != nil {
		return fmt.Errorf("failed to provision privileged account: %w", err)
	}
	if created {
		logger.Log.Warn("privileged account provisioned from config; change its password", "component", "bootstrap")
	}
	return nil
}

// Cleanup releases the database pool.
func (d *Dependencies) Cleanup() {
	if err := d.Storage.Cleanup(); err != nil {
		logger.Log.Error("failed to close storage", "error", err)
	}
}
