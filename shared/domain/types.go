package domain

type (
	Email     = string
	Password  = string
	AccountId = int64
	TokenId   = string // refresh token jti
)
