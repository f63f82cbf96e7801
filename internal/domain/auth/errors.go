package auth

import "errors"

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrTenantInactive  = errors.New("tenant is inactive")
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrMissingTenantID = errors.New("tenant_id claim is missing or invalid")
)
