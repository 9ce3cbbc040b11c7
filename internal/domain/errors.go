package domain

import "errors"

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrProviderNotFound = errors.New("provider not configured for account")
)
