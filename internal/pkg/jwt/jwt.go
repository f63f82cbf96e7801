package jwt

import (
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	TokenTypeAccess = "access"
	TokenTypeSSE    = "sse"

	ClaimTenantID = "tenant_id"
	ClaimType     = "type"
)

type Service interface {
	GenerateAccessToken(tenantID string) (token string, expiresAt int64, err error)
	GenerateSSEToken(tenantID string) (token string, expiresIn int, err error)
	ValidateSSEToken(tokenString string) (tenantID string, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpiration time.Duration
	sseTokenExpiration    time.Duration
	tokenAuth             *jwtauth.JWTAuth
	now                   func() time.Time
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpiration time.Duration) Service {
	return &JWTService{
		accessTokenExpiration: accessTokenExpiration,
		sseTokenExpiration:    5 * time.Minute,
		tokenAuth:             jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		now:                   time.Now,
	}
}

func (j *JWTService) GenerateAccessToken(tenantID string) (token string, expiresAt int64, err error) {
	expiresAt = j.now().Add(j.accessTokenExpiration).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		ClaimTenantID: tenantID,
		ClaimType:     TokenTypeAccess,
		"iat":         j.now().Unix(),
		"exp":         expiresAt,
	})
	return tokenString, expiresAt, err
}

// GenerateSSEToken generates a short-lived token for SSE connections, which
// cannot carry an Authorization header from the browser.
func (j *JWTService) GenerateSSEToken(tenantID string) (token string, expiresIn int, err error) {
	expiresIn = int(j.sseTokenExpiration.Seconds())
	expiresAt := j.now().Add(j.sseTokenExpiration).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		ClaimTenantID: tenantID,
		ClaimType:     TokenTypeSSE,
		"exp":         expiresAt,
	})
	if err != nil {
		return "", 0, err
	}

	return tokenString, expiresIn, nil
}

// ValidateSSEToken validates an SSE token and returns the tenant ID
func (j *JWTService) ValidateSSEToken(tokenString string) (tenantID string, err error) {
	token, err := j.tokenAuth.Decode(tokenString)
	if err != nil {
		return "", err
	}

	if err := jwt.Validate(token, jwt.WithAcceptableSkew(30*time.Second)); err != nil {
		return "", err
	}

	tokenType, ok := token.Get(ClaimType)
	if !ok || tokenType != TokenTypeSSE {
		return "", jwt.ErrInvalidJWT()
	}

	tenantIDVal, ok := token.Get(ClaimTenantID)
	if !ok {
		return "", jwt.ErrInvalidJWT()
	}

	tenantID, ok = tenantIDVal.(string)
	if !ok || tenantID == "" {
		return "", jwt.ErrInvalidJWT()
	}

	return tenantID, nil
}
