package domain

import "time"

// TokenPair is handed to the caller and never persisted.
type TokenPair struct {
	Access  string
	Refresh string
}

// Principal is what a verified access token proves.
type Principal struct {
	AccountId AccountId
	Email     Email
	Staff     bool
	ExpiresAt time.Time
}

// RefreshClaims is the verified content of a refresh token.
type RefreshClaims struct {
	AccountId AccountId
	TokenId   TokenId
	ExpiresAt time.Time
}

type RevocationReason = string

const (
	ReasonLogout  RevocationReason = "logout"
	ReasonRotated RevocationReason = "rotated"
)

type RevocationEntry struct {
	TokenId   TokenId
	AccountId AccountId
	RevokedAt time.Time
	ExpiresAt time.Time
	Reason    RevocationReason
}
