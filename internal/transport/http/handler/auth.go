package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-magiclink-api/internal/application/auth"
	"github.com/go-magiclink-api/internal/domain"
	"github.com/go-magiclink-api/internal/pkg/validate"
)

// AuthHandler handles the login/verification/refresh endpoints.
type AuthHandler struct {
	svc     auth.Service
	cookies CookieWriter
}

func NewAuthHandler(svc auth.Service, cookies CookieWriter) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Login(r.Context(), req.Email); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Magic link sent to your email!"})
}

func (h *AuthHandler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.CompleteVerification(r.Context(), req.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cookies.setAuthCookies(w, result.Bearer, result.RefreshToken)
	writeJSON(w, http.StatusOK, AuthEnvelope{
		AccessToken:  result.Bearer,
		RefreshToken: result.RefreshToken,
		User:         result.User,
		Message:      "Login successful",
	})
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.GoogleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.LoginWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cookies.setAuthCookies(w, result.Bearer, result.RefreshToken)
	writeJSON(w, http.StatusOK, AuthEnvelope{
		AccessToken:  result.Bearer,
		RefreshToken: result.RefreshToken,
		User:         result.User,
		Message:      "Login successful",
	})
}

// RefreshToken reads the refresh token from its cookie, falling back to the
// request body for cookie-less API clients.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	if c, err := r.Cookie(refreshCookieName); err == nil {
		refreshToken = c.Value
	}
	if refreshToken == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			refreshToken = body.RefreshToken
		}
	}
	if refreshToken == "" {
		writeError(w, http.StatusUnauthorized, "refresh token is missing or expired")
		return
	}
	bearer, err := h.svc.Refresh(r.Context(), refreshToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cookies.setAuthCookies(w, bearer, "")
	writeJSON(w, http.StatusOK, AuthEnvelope{AccessToken: bearer, Message: "Access token refreshed"})
}

// Logout discards the client-side credentials. Tokens are stateless, so there
// is nothing to revoke server-side.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Logged out successfully"})
}
