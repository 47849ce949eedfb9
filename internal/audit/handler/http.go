// Package handler exposes the audit trail read surface over HTTP.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"zt-totp/backend/internal/api"
	"zt-totp/backend/internal/audit/domain"
	"zt-totp/backend/internal/audit/repository"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type logResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	RPID      string    `json:"rp_id,omitempty"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(a *domain.AuditLog) logResponse {
	return logResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		DeviceID:  a.DeviceID,
		RPID:      a.RPID,
		Action:    a.Action,
		Outcome:   a.Outcome,
		IP:        a.IP,
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt,
	}
}

// Handler serves the audit log read routes.
type Handler struct {
	repo repository.Repository
}

// New returns an audit handler.
func New(repo repository.Repository) *Handler {
	return &Handler{repo: repo}
}

// Mount registers the audit routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/audit-logs/{id}", h.get)
	r.Get("/users/{id}/audit-logs", h.listByUser)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	a, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if a == nil {
		api.Error(w, http.StatusNotFound, "audit log not found")
		return
	}
	api.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) listByUser(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	logs, err := h.repo.ListByUser(r.Context(), chi.URLParam(r, "id"), int32(limit), int32(offset))
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]logResponse, 0, len(logs))
	for _, a := range logs {
		out = append(out, toResponse(a))
	}
	api.JSON(w, http.StatusOK, map[string]any{"audit_logs": out})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
