package api

import "time"

// Request DTOs

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type LogoutRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// Response DTOs

type TokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type LogoutResponse struct {
	Detail string `json:"detail"`
}

type AccountResponse struct {
	Id          int64     `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	IsActive    bool      `json:"is_active"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

type RevocationResponse struct {
	Jti       string    `json:"jti"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Reason    string    `json:"reason"`
}
