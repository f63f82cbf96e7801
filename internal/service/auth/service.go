package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthServiceImpl struct {
	tenantRepo auth.TenantRepository
	jwt.Service
	now func() time.Time
}

func NewAuthService(tenantRepo auth.TenantRepository, jwtService jwt.Service) auth.AuthService {
	return &AuthServiceImpl{
		tenantRepo: tenantRepo,
		Service:    jwtService,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// splitAPIKey parses "<prefix>.<secret>".
func splitAPIKey(apiKey string) (prefix, secret string, ok bool) {
	prefix, secret, ok = strings.Cut(strings.TrimSpace(apiKey), ".")
	if !ok || prefix == "" || secret == "" {
		return "", "", false
	}
	return prefix, secret, true
}

// IssueToken implements auth.AuthService.
func (a *AuthServiceImpl) IssueToken(ctx context.Context, apiKey string) (auth.TokenResponse, error) {
	prefix, secret, ok := splitAPIKey(apiKey)
	if !ok {
		return auth.TokenResponse{}, auth.ErrInvalidAPIKey
	}

	tenantData, err := a.tenantRepo.GetByKeyPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, auth.ErrTenantNotFound) {
			return auth.TokenResponse{}, auth.ErrInvalidAPIKey
		}
		return auth.TokenResponse{}, fmt.Errorf("failed to get tenant by key prefix: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(tenantData.KeyHash), []byte(secret)); err != nil {
		return auth.TokenResponse{}, auth.ErrInvalidAPIKey
	}
	if !tenantData.IsActive {
		return auth.TokenResponse{}, auth.ErrTenantInactive
	}

	token, expiresAt, err := a.Service.GenerateAccessToken(tenantData.ID)
	if err != nil {
		return auth.TokenResponse{}, fmt.Errorf("failed to create access token: %w", err)
	}

	return auth.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		TenantID:    tenantData.ID,
	}, nil
}

// IssueSSEToken implements auth.AuthService.
func (a *AuthServiceImpl) IssueSSEToken(ctx context.Context, tenantID string) (auth.SSETokenResponse, error) {
	if tenantID == "" {
		return auth.SSETokenResponse{}, auth.ErrMissingTenantID
	}
	token, expiresIn, err := a.Service.GenerateSSEToken(tenantID)
	if err != nil {
		return auth.SSETokenResponse{}, fmt.Errorf("failed to create sse token: %w", err)
	}
	return auth.SSETokenResponse{Token: token, ExpiresIn: expiresIn}, nil
}

// CreateTenant implements auth.AuthService.
func (a *AuthServiceImpl) CreateTenant(ctx context.Context, req auth.CreateTenantRequest) (auth.CreateTenantResponse, error) {
	if errs := validator.Struct(&req); len(errs) > 0 {
		return auth.CreateTenantResponse{}, errs
	}

	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return auth.CreateTenantResponse{}, fmt.Errorf("failed to generate api key: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return auth.CreateTenantResponse{}, fmt.Errorf("failed to hash api key: %w", err)
	}

	now := a.now()
	created, err := a.tenantRepo.Create(ctx, auth.Tenant{
		Name:      req.Name,
		KeyPrefix: prefix,
		KeyHash:   string(hash),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return auth.CreateTenantResponse{}, fmt.Errorf("failed to create tenant: %w", err)
	}

	slog.Info("Tenant created", "tenant_id", created.ID, "key_prefix", prefix)
	return auth.CreateTenantResponse{
		TenantID: created.ID,
		Name:     created.Name,
		APIKey:   prefix + "." + secret,
	}, nil
}
