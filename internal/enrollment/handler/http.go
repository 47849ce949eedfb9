// Package handler exposes the composite enrollment flow over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zt-totp/backend/internal/api"
	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/enrollment"
)

type enrollRequest struct {
	Email         string `json:"email"`
	DeviceLabel   string `json:"device_label"`
	Platform      string `json:"platform"`
	RPID          string `json:"rp_id"`
	RPDisplayName string `json:"rp_display_name"`
	KeyType       string `json:"key_type"`
	PublicKey     string `json:"public_key"`
}

type entityRef struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type enrollResponse struct {
	User         entityRef `json:"user"`
	Device       entityRef `json:"device"`
	RelyingParty entityRef `json:"relying_party"`
	DeviceKey    entityRef `json:"device_key"`
}

// Handler serves the /enroll route.
type Handler struct {
	service *enrollment.Service
}

// New returns an enrollment handler.
func New(service *enrollment.Service) *Handler {
	return &Handler{service: service}
}

// Mount registers the enrollment route on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/enroll", h.enroll)
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.DeviceLabel == "" || req.Platform == "" ||
		req.RPID == "" || req.RPDisplayName == "" || req.KeyType == "" || req.PublicKey == "" {
		api.Error(w, http.StatusBadRequest, "all enrollment fields are required")
		return
	}
	out, err := h.service.Enroll(r.Context(), enrollment.Input{
		Email:         req.Email,
		DeviceLabel:   req.DeviceLabel,
		Platform:      req.Platform,
		RPID:          req.RPID,
		RPDisplayName: req.RPDisplayName,
		KeyType:       req.KeyType,
		PublicKey:     req.PublicKey,
	})
	if err != nil {
		if errors.Is(err, db.ErrConflict) {
			api.Error(w, http.StatusConflict, "enrollment conflict")
			return
		}
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	api.JSON(w, http.StatusCreated, enrollResponse{
		User:         entityRef{ID: out.User.ID, CreatedAt: out.User.CreatedAt},
		Device:       entityRef{ID: out.Device.ID, CreatedAt: out.Device.CreatedAt},
		RelyingParty: entityRef{ID: out.RelyingParty.ID, CreatedAt: out.RelyingParty.CreatedAt},
		DeviceKey:    entityRef{ID: out.DeviceKey.ID, CreatedAt: out.DeviceKey.CreatedAt},
	})
}
