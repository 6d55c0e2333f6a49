package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/itchan-dev/authd/shared/domain"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
	"github.com/itchan-dev/authd/shared/logger"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Claims is shared by both token types; Type tells them apart so one can
// never be presented in place of the other.
type Claims struct {
	UserId int64     `json:"uid"`
	Email  string    `json:"email,omitempty"`
	Staff  bool      `json:"staff,omitempty"`
	Type   TokenType `json:"typ"`
	jwt.RegisteredClaims
}

type JwtService interface {
	Issue(account domain.Account) (domain.TokenPair, error)
	VerifyAccess(token string) (domain.Principal, error)
	VerifyRefresh(token string) (domain.RefreshClaims, error)
	VerifyRefreshIgnoringExpiry(token string) (domain.RefreshClaims, error)
}

type Jwt struct {
	secretKey  []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	newId      func() string
}

var _ JwtService = (*Jwt)(nil)

type Option func(*Jwt)

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(j *Jwt) { j.now = now }
}

func New(secretKey, issuer string, accessTTL, refreshTTL time.Duration, opts ...Option) *Jwt {
	j := &Jwt{
		secretKey:  []byte(secretKey),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		newId:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Issue mints an access/refresh pair. The refresh token always gets a fresh jti.
func (j *Jwt) Issue(account domain.Account) (domain.TokenPair, error) {
	now := j.now()

	access := Claims{
		UserId: account.Id,
		Email:  account.Email,
		Staff:  account.IsStaff,
		Type:   AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTTL)),
		},
	}
	refresh := Claims{
		UserId: account.Id,
		Type:   RefreshToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        j.newId(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.refreshTTL)),
		},
	}

	accessStr, err := j.sign(access)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refreshStr, err := j.sign(refresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{Access: accessStr, Refresh: refreshStr}, nil
}

func (j *Jwt) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(j.secretKey)
	if err != nil {
		logger.Log.Error("failed to sign token", "type", claims.Type, "user_id", claims.UserId, "error", err)
		return "", fmt.Errorf("can't create %s token: %w", claims.Type, err)
	}
	return s, nil
}

// VerifyAccess checks signature and expiry only. No store is consulted.
func (j *Jwt) VerifyAccess(token string) (domain.Principal, error) {
	claims, err := j.decode(token, AccessToken, true)
	if err != nil {
		return domain.Principal{}, err
	}
	return domain.Principal{
		AccountId: claims.UserId,
		Email:     claims.Email,
		Staff:     claims.Staff,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (j *Jwt) VerifyRefresh(token string) (domain.RefreshClaims, error) {
	return j.verifyRefresh(token, true)
}

// VerifyRefreshIgnoringExpiry still requires a valid signature and structure,
// but accepts a token whose exp has passed. Logout uses it so an expired
// token can still be recorded as revoked.
func (j *Jwt) VerifyRefreshIgnoringExpiry(token string) (domain.RefreshClaims, error) {
	return j.verifyRefresh(token, false)
}

func (j *Jwt) verifyRefresh(token string, checkExpiry bool) (domain.RefreshClaims, error) {
	claims, err := j.decode(token, RefreshToken, checkExpiry)
	if err != nil {
		return domain.RefreshClaims{}, err
	}
	if claims.ID == "" {
		return domain.RefreshClaims{}, internal_errors.TokenMalformed("Refresh token has no identifier")
	}
	return domain.RefreshClaims{
		AccountId: claims.UserId,
		TokenId:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (j *Jwt) decode(tokenStr string, want TokenType, checkExpiry bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	}
	if checkExpiry {
		opts = append(opts, jwt.WithIssuer(j.issuer), jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, internal_errors.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, internal_errors.TokenMalformed("Invalid token signature")
		default:
			return nil, internal_errors.TokenMalformed("Invalid token")
		}
	}

	// claims validation is skipped for logout, so check what it would have
	if !checkExpiry && (claims.Issuer != j.issuer || claims.ExpiresAt == nil) {
		return nil, internal_errors.TokenMalformed("Invalid token")
	}
	if claims.Type != want {
		return nil, internal_errors.TokenMalformed(fmt.Sprintf("Expected %s token", want))
	}
	if claims.UserId <= 0 {
		return nil, internal_errors.TokenMalformed("Invalid token subject")
	}
	return claims, nil
}
