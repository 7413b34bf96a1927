package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modvault/session-security/internal/http/middleware"
	"github.com/modvault/session-security/internal/http/response"
	"github.com/modvault/session-security/internal/observability"
	"github.com/modvault/session-security/internal/repository"
	"github.com/modvault/session-security/internal/service"
)

type SessionHandler struct {
	lifecycle *service.SessionLifecycle
}

func NewSessionHandler(lifecycle *service.SessionLifecycle) *SessionHandler {
	return &SessionHandler{lifecycle: lifecycle}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing credential", nil)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credential subject", nil)
		return
	}
	views, err := h.lifecycle.ListSessions(userID, claims.SessionToken)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list sessions", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, views)
}

func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing credential", nil)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credential subject", nil)
		return
	}
	token := chi.URLParam(r, "token")
	if err := h.lifecycle.RevokeSession(userID, token); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no active session with that token", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to revoke session", nil)
		return
	}
	observability.Audit(r, "session.revoked", "user_id", userID, "session_token", token)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "revoked"})
}

// RevokeOthers force-logs-out every session of the caller except the current
// one.
func (h *SessionHandler) RevokeOthers(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing credential", nil)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credential subject", nil)
		return
	}
	count, err := h.lifecycle.ForceLogout(userID, claims.SessionToken)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to revoke sessions", nil)
		return
	}
	observability.Audit(r, "session.revoke_others", "user_id", userID, "revoked", count)
	response.JSON(w, r, http.StatusOK, map[string]any{"revoked": count})
}
