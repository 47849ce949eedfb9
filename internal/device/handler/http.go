// Package handler exposes device CRUD over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"zt-totp/backend/internal/api"
	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/device/domain"
	"zt-totp/backend/internal/device/repository"
)

type createRequest struct {
	UserID      string `json:"user_id"`
	DeviceLabel string `json:"device_label"`
	Platform    string `json:"platform"`
}

type deviceResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	DeviceLabel string    `json:"device_label"`
	Platform    string    `json:"platform"`
	CreatedAt   time.Time `json:"created_at"`
}

func toResponse(d *domain.Device) deviceResponse {
	return deviceResponse{ID: d.ID, UserID: d.UserID, DeviceLabel: d.Label, Platform: d.Platform, CreatedAt: d.CreatedAt}
}

// Handler serves the /devices routes.
type Handler struct {
	repo repository.Repository
}

// New returns a device handler.
func New(repo repository.Repository) *Handler {
	return &Handler{repo: repo}
}

// Mount registers the device routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/devices", h.create)
	r.Get("/devices/{id}", h.get)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" || req.DeviceLabel == "" || req.Platform == "" {
		api.Error(w, http.StatusBadRequest, "user_id, device_label and platform are required")
		return
	}
	d := &domain.Device{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Label:     req.DeviceLabel,
		Platform:  req.Platform,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), d); err != nil {
		if db.IsInvalidID(err) {
			api.Error(w, http.StatusBadRequest, "user_id must be a valid uuid")
			return
		}
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.JSON(w, http.StatusCreated, toResponse(d))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if d == nil {
		api.Error(w, http.StatusNotFound, "device not found")
		return
	}
	api.JSON(w, http.StatusOK, toResponse(d))
}
