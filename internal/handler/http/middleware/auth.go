package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine-go/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
	"github.com/go-chi/jwtauth/v5"
)

// TenantAuth verifies the bearer access token and places the tenant scope in
// the request context. Handlers read it back with tenant.FromContext; no
// handler looks at claims directly.
func TenantAuth(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	verify := jwtauth.Verify(ja, jwtauth.TokenFromHeader)

	return func(next http.Handler) http.Handler {
		scoped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}
			if token == nil {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			// SSE tokens are only good for the event stream.
			if tokenType, _ := claims[jwt.ClaimType].(string); tokenType != jwt.TokenTypeAccess {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			tenantID, _ := claims[jwt.ClaimTenantID].(string)
			if tenantID == "" {
				response.HandleError(w, auth.ErrMissingTenantID)
				return
			}

			ctx := tenant.WithScope(r.Context(), tenant.Scope{TenantID: tenantID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		return verify(scoped)
	}
}
