package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine-go/internal/handler/http/response"
)

const APIKeyHeader = "X-API-Key"

type AuthHandler interface {
	IssueToken(w http.ResponseWriter, r *http.Request)
}

type AuthHandlerImpl struct {
	authService auth.AuthService
}

func NewAuthHandler(authService auth.AuthService) AuthHandler {
	return &AuthHandlerImpl{authService: authService}
}

// IssueToken exchanges the X-API-Key header for an access token.
func (a *AuthHandlerImpl) IssueToken(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get(APIKeyHeader)
	if apiKey == "" {
		response.Unauthorized(w, "Missing API key")
		return
	}

	token, err := a.authService.IssueToken(r.Context(), apiKey)
	if err != nil {
		slog.Warn("IssueToken rejected", "remote_addr", r.RemoteAddr, "error", err)
		response.HandleError(w, err)
		return
	}

	response.Success(w, token)
}

// decodeJSON reads a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
