package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/itchan-dev/authd/shared/domain"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
	"github.com/itchan-dev/authd/shared/utils"
)

// Authorizer validates an access token. Implementations must not consult the
// revocation ledger; access tokens are stateless.
type Authorizer interface {
	Authorize(ctx context.Context, accessToken string) (domain.Principal, error)
}

// Key to store the principal in the request context
type key int

const PrincipalKey key = 0

// Auth holds dependencies for authentication middleware
type Auth struct {
	authorizer Authorizer
}

func NewAuth(authorizer Authorizer) *Auth {
	return &Auth{authorizer: authorizer}
}

// NeedAuth returns middleware that requires a valid access token
func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return a.auth(false)
}

// StaffOnly returns middleware that requires a staff access token
func (a *Auth) StaffOnly() func(http.Handler) http.Handler {
	return a.auth(true)
}

// OptionalAuth populates the principal when a valid token is presented and
// passes the request through untouched otherwise.
func (a *Auth) OptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := a.extractPrincipal(r)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var (
	errNoToken = internal_errors.New(internal_errors.KindUnauthorized, http.StatusUnauthorized, "Authentication credentials were not provided.")
	errNoStaff = internal_errors.New(internal_errors.KindForbidden, http.StatusForbidden, "You do not have permission to perform this action.")
)

func (a *Auth) extractPrincipal(r *http.Request) (domain.Principal, error) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	if !found || token == "" {
		return domain.Principal{}, errNoToken
	}
	return a.authorizer.Authorize(r.Context(), token)
}

func (a *Auth) auth(staffOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := a.extractPrincipal(r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				utils.WriteErrorAndStatusCode(w, err)
				return
			}

			if staffOnly && !principal.Staff {
				utils.WriteErrorAndStatusCode(w, errNoStaff)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, &p)
}

// GetPrincipalFromContext returns nil for anonymous requests.
func GetPrincipalFromContext(ctx context.Context) *domain.Principal {
	p, ok := ctx.Value(PrincipalKey).(*domain.Principal)
	if !ok {
		return nil
	}
	return p
}
