package auth

import (
	"context"
)

type AuthService interface {
	// IssueToken exchanges an API key for a short-lived access token.
	IssueToken(ctx context.Context, apiKey string) (TokenResponse, error)

	// IssueSSEToken returns a short-lived token for the event stream.
	IssueSSEToken(ctx context.Context, tenantID string) (SSETokenResponse, error)

	CreateTenant(ctx context.Context, req CreateTenantRequest) (CreateTenantResponse, error)
}
