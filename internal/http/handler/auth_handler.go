package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/modvault/session-security/internal/domain"
	"github.com/modvault/session-security/internal/http/middleware"
	"github.com/modvault/session-security/internal/http/response"
	"github.com/modvault/session-security/internal/observability"
	"github.com/modvault/session-security/internal/service"
)

type AuthHandler struct {
	accounts  *service.AccountService
	lifecycle *service.SessionLifecycle
}

func NewAuthHandler(accounts *service.AccountService, lifecycle *service.SessionLifecycle) *AuthHandler {
	return &AuthHandler{accounts: accounts, lifecycle: lifecycle}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	user, err := h.accounts.Register(req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.Error(w, r, http.StatusConflict, "EMAIL_TAKEN", "email already registered", nil)
			return
		}
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	observability.Audit(r, "account.registered", "user_id", user.ID)
	response.JSON(w, r, http.StatusCreated, map[string]any{"id": user.ID, "email": user.Email})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token        string    `json:"token"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	result, err := h.lifecycle.Login(r.Context(), service.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
		IPAddress: middleware.ClientIP(r),
	})
	if err != nil {
		var locked *service.AccountLockedError
		switch {
		case errors.As(err, &locked):
			seconds := int(locked.RetryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			response.Error(w, r, http.StatusLocked, "ACCOUNT_LOCKED",
				"too many attempts, try again later",
				map[string]any{"retry_after_seconds": seconds})
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
		}
		return
	}

	// Risk data stays server-side; the client only sees the credential.
	observability.Audit(r, "auth.login",
		"user_id", result.User.ID,
		"session_token", result.Session.SessionToken,
		"suspicious", result.Risk.IsSuspiciousActivity,
	)
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    result.Credential,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  result.Session.ExpiresAt,
	})
	response.JSON(w, r, http.StatusOK, loginResponse{
		Token:        result.Credential,
		SessionToken: result.Session.SessionToken,
		ExpiresAt:    result.Session.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing credential", nil)
		return
	}
	if err := h.lifecycle.Logout(claims.SessionToken, domain.LogoutManual); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "logout failed", nil)
		return
	}
	observability.Audit(r, "auth.logout", "session_token", claims.SessionToken)
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}
