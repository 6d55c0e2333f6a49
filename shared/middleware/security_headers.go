package middleware

import (
	"net/http"
)

// APIContentSecurityPolicy forbids everything; responses are JSON only.
const APIContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// SecurityHeaders sets hardening headers on every response.
// isHTTPS adds Strict-Transport-Security; an empty csp leaves the header unset.
func SecurityHeaders(isHTTPS bool, csp string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers := w.Header()

			headers.Set("X-Frame-Options", "DENY")
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("Referrer-Policy", "no-referrer")
			headers.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")
			// token responses must never be cached by intermediaries
			headers.Set("Cache-Control", "no-store")

			if csp != "" {
				headers.Set("Content-Security-Policy", csp)
			}
			if isHTTPS {
				headers.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
