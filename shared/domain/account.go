package domain

import (
	"strings"
	"time"
)

type Account struct {
	Id          AccountId
	Email       Email
	PassHash    string
	FirstName   string
	LastName    string
	IsActive    bool
	IsStaff     bool
	IsSuperuser bool
	CreatedAt   time.Time
}

// Profile holds the optional attributes supplied at registration.
type Profile struct {
	FirstName string
	LastName  string
}

// Roles selects the privilege flags of a new account.
type Roles struct {
	IsStaff     bool
	IsSuperuser bool
}

type Credentials struct {
	Email    Email
	Password Password
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email Email) Email {
	return strings.ToLower(strings.TrimSpace(email))
}
