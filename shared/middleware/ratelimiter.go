package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/itchan-dev/authd/shared/domain"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
	"github.com/itchan-dev/authd/shared/middleware/ratelimiter"
	"github.com/itchan-dev/authd/shared/utils"
)

var errRateLimited = internal_errors.New(internal_errors.KindTooManyRequests, http.StatusTooManyRequests, "Rate limit exceeded, try again later")

// RateLimit throttles requests per identity. Staff principals are exempt.
func RateLimit(rl *ratelimiter.Limiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := GetPrincipalFromContext(r.Context()); p != nil && p.Staff {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := getIdentity(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !rl.Allow(identity) {
				w.Header().Set("Retry-After", "60")
				utils.WriteErrorAndStatusCode(w, errRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func GlobalRateLimit(rl *ratelimiter.Limiter) func(http.Handler) http.Handler {
	return RateLimit(rl, func(r *http.Request) (string, error) { return "global", nil })
}

// GetIP keys on the connection address only.
func GetIP(r *http.Request) (string, error) {
	ip, err := utils.GetIP(r)
	if err != nil {
		return "", internal_errors.BadRequest("Can't determine client address")
	}
	return ip, nil
}

// GetAccountIDFromContext requires an auth middleware to run first.
func GetAccountIDFromContext(r *http.Request) (string, error) {
	p := GetPrincipalFromContext(r.Context())
	if p == nil {
		return "", fmt.Errorf("no principal in request context")
	}
	return fmt.Sprintf("account_%d", p.AccountId), nil
}

// GetEmailFromBody extracts the normalized email from a JSON body and puts
// the body back so the handler can decode it again.
func GetEmailFromBody(r *http.Request) (string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", internal_errors.BadRequest("Failed to read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var data struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", internal_errors.BadRequest("Body is invalid json")
	}
	email := domain.NormalizeEmail(data.Email)
	if email == "" {
		return "", internal_errors.BadRequest("email is required")
	}
	return email, nil
}
