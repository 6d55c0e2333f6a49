package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/itchan-dev/authd/shared/domain"
	"github.com/itchan-dev/authd/shared/middleware"
	"github.com/stretchr/testify/require"
)

type MockSessionService struct {
	LoginFunc     func(ctx context.Context, creds domain.Credentials) (domain.TokenPair, error)
	RefreshFunc   func(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	LogoutFunc    func(ctx context.Context, refreshToken string) error
	AuthorizeFunc func(ctx context.Context, accessToken string) (domain.Principal, error)
}

func (m *MockSessionService) Login(ctx context.Context, creds domain.Credentials) (domain.TokenPair, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, creds)
	}
	return domain.TokenPair{Access: "access", Refresh: "refresh"}, nil
}

func (m *MockSessionService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return domain.TokenPair{Access: "access2", Refresh: "refresh2"}, nil
}

func (m *MockSessionService) Logout(ctx context.Context, refreshToken string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, refreshToken)
	}
	return nil
}

func (m *MockSessionService) Authorize(ctx context.Context, accessToken string) (domain.Principal, error) {
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, accessToken)
	}
	return domain.Principal{AccountId: 1}, nil
}

type MockAccountService struct {
	CreateFunc    func(ctx context.Context, creds domain.Credentials, profile domain.Profile, roles domain.Roles) (domain.Account, error)
	AccountFunc   func(ctx context.Context, id domain.AccountId) (domain.Account, error)
	SetActiveFunc func(ctx context.Context, id domain.AccountId, active bool) (domain.Account, error)
}

func (m *MockAccountService) Create(ctx context.Context, creds domain.Credentials, profile domain.Profile, roles domain.Roles) (domain.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, creds, profile, roles)
	}
	return domain.Account{Id: 1, Email: creds.Email, FirstName: profile.FirstName, LastName: profile.LastName, IsActive: true}, nil
}

func (m *MockAccountService) Account(ctx context.Context, id domain.AccountId) (domain.Account, error) {
	if m.AccountFunc != nil {
		return m.AccountFunc(ctx, id)
	}
	return domain.Account{Id: id, Email: "user@example.com", IsActive: true}, nil
}

func (m *MockAccountService) SetActive(ctx context.Context, id domain.AccountId, active bool) (domain.Account, error) {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, id, active)
	}
	return domain.Account{Id: id, IsActive: active}, nil
}

type MockRevocationLister struct {
	ListByAccountFunc func(ctx context.Context, id domain.AccountId) ([]domain.RevocationEntry, error)
}

func (m *MockRevocationLister) ListByAccount(ctx context.Context, id domain.AccountId) ([]domain.RevocationEntry, error) {
	if m.ListByAccountFunc != nil {
		return m.ListByAccountFunc(ctx, id)
	}
	return nil, nil
}

type MockHealthChecker struct {
	PingFunc func(ctx context.Context) error
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil // Default: healthy
}

func newTestHandler() (*Handler, *MockSessionService, *MockAccountService, *MockRevocationLister) {
	sessions := &MockSessionService{}
	accounts := &MockAccountService{}
	revocations := &MockRevocationLister{}
	return New(sessions, accounts, revocations, &MockHealthChecker{}, nil), sessions, accounts, revocations
}

func createRequest(t *testing.T, method, url string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withPrincipal(req *http.Request, p domain.Principal) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), p))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}
