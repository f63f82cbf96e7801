package auth

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
	TenantID    string `json:"tenant_id"`
}

type SSETokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type CreateTenantRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// CreateTenantResponse carries the plaintext API key. It is shown once and
// never stored.
type CreateTenantResponse struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	APIKey   string `json:"api_key"`
}
