package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modvault/session-security/internal/http/response"
	"github.com/modvault/session-security/internal/observability"
	"github.com/modvault/session-security/internal/repository"
	"github.com/modvault/session-security/internal/service"
)

const (
	defaultHistoryLimit = 50
	defaultStatsWindow  = 30 * 24 * time.Hour
	defaultSuspWindow   = 24 * time.Hour
)

type AdminHandler struct {
	lifecycle *service.SessionLifecycle
	history   repository.LoginHistoryRepository
}

func NewAdminHandler(lifecycle *service.SessionLifecycle, history repository.LoginHistoryRepository) *AdminHandler {
	return &AdminHandler{lifecycle: lifecycle, history: history}
}

// ForceLogout terminates every active session of the target user.
func (h *AdminHandler) ForceLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	count, err := h.lifecycle.ForceLogout(userID, "")
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "force logout failed", nil)
		return
	}
	observability.Audit(r, "admin.force_logout", "target_user_id", userID, "revoked", count)
	response.JSON(w, r, http.StatusOK, map[string]any{"revoked": count})
}

func (h *AdminHandler) LoginHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", defaultHistoryLimit)
	entries, err := h.history.FindByUser(userID, limit)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load login history", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, entries)
}

func (h *AdminHandler) LoginStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	window := queryDuration(r, "window", defaultStatsWindow)
	stats, err := h.history.AggregateStats(userID, time.Now().Add(-window))
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to aggregate stats", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, stats)
}

func (h *AdminHandler) Suspicious(w http.ResponseWriter, r *http.Request) {
	window := queryDuration(r, "window", defaultSuspWindow)
	limit := queryInt(r, "limit", defaultHistoryLimit)
	entries, err := h.history.FindSuspiciousSince(time.Now().Add(-window), limit)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load suspicious activity", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, entries)
}

func pathUserID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return 0, false
	}
	return uint(id), true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func queryDuration(r *http.Request, name string, fallback time.Duration) time.Duration {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
