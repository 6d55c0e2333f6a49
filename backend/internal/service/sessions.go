package service

import (
	"context"

	"github.com/itchan-dev/authd/shared/domain"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
	"github.com/itchan-dev/authd/shared/jwt"
	"github.com/itchan-dev/authd/shared/logger"
)

type SessionService interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authorize(ctx context.Context, accessToken string) (domain.Principal, error)
}

// CredentialStore is the part of Credentials that sessions depend on.
type CredentialStore interface {
	Authenticate(ctx context.Context, creds domain.Credentials) (domain.Account, error)
	Account(ctx context.Context, id domain.AccountId) (domain.Account, error)
}

type RevocationLedger interface {
	Revoke(ctx context.Context, entry domain.RevocationEntry) (bool, error)
	IsRevoked(ctx context.Context, id domain.TokenId) (bool, error)
}

// Sessions drives a refresh token through Active -> Revoked. Revocation is
// terminal.
type Sessions struct {
	credentials CredentialStore
	jwt         jwt.JwtService
	ledger      RevocationLedger
}

var _ SessionService = (*Sessions)(nil)

func NewSessions(credentials CredentialStore, tokens jwt.JwtService, ledger RevocationLedger) *Sessions {
	return &Sessions{credentials: credentials, jwt: tokens, ledger: ledger}
}

func (s *Sessions) Login(ctx context.Context, creds domain.Credentials) (pair domain.TokenPair, err error) {
	defer func() { observe("login", err) }()

	account, err := s.credentials.Authenticate(ctx, creds)
	if err != nil {
		return domain.TokenPair{}, err
	}
	pair, err = s.jwt.Issue(account)
	if err != nil {
		logger.Log.Error("failed to issue tokens", "account_id", account.Id, "error", err)
		return domain.TokenPair{}, err
	}
	logger.Log.Info("login", "account_id", account.Id)
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
// Of two concurrent refreshes with the same token, exactly one gets a pair.
func (s *Sessions) Refresh(ctx context.Context, refreshToken string) (pair domain.TokenPair, err error) {
	defer func() { observe("refresh", err) }()

	claims, err := s.jwt.VerifyRefresh(refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	revoked, err := s.ledger.IsRevoked(ctx, claims.TokenId)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if revoked {
		logger.Log.Info("revoked refresh token presented", "account_id", claims.AccountId, "jti", claims.TokenId)
		return domain.TokenPair{}, internal_errors.ErrTokenRevoked
	}

	account, err := s.credentials.Account(ctx, claims.AccountId)
	if err != nil {
		if internal_errors.IsNotFound(err) {
			return domain.TokenPair{}, internal_errors.TokenMalformed("Token subject does not exist")
		}
		return domain.TokenPair{}, err
	}
	if !account.IsActive {
		return domain.TokenPair{}, internal_errors.ErrInactiveAccount
	}

	pair, err = s.jwt.Issue(account)
	if err != nil {
		logger.Log.Error("failed to issue tokens", "account_id", account.Id, "error", err)
		return domain.TokenPair{}, err
	}

	won, err := s.ledger.Revoke(ctx, domain.RevocationEntry{
		TokenId:   claims.TokenId,
		AccountId: claims.AccountId,
		ExpiresAt: claims.ExpiresAt,
		Reason:    domain.ReasonRotated,
	})
	if err != nil {
		logger.Log.Error("failed to revoke rotated refresh token", "account_id", claims.AccountId, "jti", claims.TokenId, "error", err)
		return domain.TokenPair{}, err
	}
	if !won {
		// another refresh or a logout got there first; the new pair is discarded
		logger.Log.Info("refresh lost rotation race", "account_id", claims.AccountId, "jti", claims.TokenId)
		return domain.TokenPair{}, internal_errors.ErrTokenRevoked
	}

	logger.Log.Info("refresh token rotated", "account_id", claims.AccountId, "jti", claims.TokenId)
	return pair, nil
}

// Logout revokes the refresh token. An expired but otherwise valid token is
// accepted, and revoking twice succeeds.
func (s *Sessions) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { observe("logout", err) }()

	claims, err := s.jwt.VerifyRefreshIgnoringExpiry(refreshToken)
	if err != nil {
		return err
	}

	won, err := s.ledger.Revoke(ctx, domain.RevocationEntry{
		TokenId:   claims.TokenId,
		AccountId: claims.AccountId,
		ExpiresAt: claims.ExpiresAt,
		Reason:    domain.ReasonLogout,
	})
	if err != nil {
		logger.Log.Error("failed to revoke refresh token", "account_id", claims.AccountId, "jti", claims.TokenId, "error", err)
		return err
	}
	logger.Log.Info("logout", "account_id", claims.AccountId, "jti", claims.TokenId, "already_revoked", !won)
	return nil
}

// Authorize never consults the ledger. An access token stays usable after
// logout until it expires.
func (s *Sessions) Authorize(ctx context.Context, accessToken string) (domain.Principal, error) {
	return s.jwt.VerifyAccess(accessToken)
}
