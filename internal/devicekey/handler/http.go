// Package handler exposes device-key CRUD and rotation over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"zt-totp/backend/internal/api"
	"zt-totp/backend/internal/audit"
	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/devicekey"
	"zt-totp/backend/internal/devicekey/domain"
	"zt-totp/backend/internal/devicekey/repository"
	"zt-totp/backend/internal/telemetry"
	telemetrydomain "zt-totp/backend/internal/telemetry/domain"
	"zt-totp/backend/internal/verification"
)

type createRequest struct {
	DeviceID  string `json:"device_id"`
	RPID      string `json:"rp_id"` // relying party internal id
	KeyType   string `json:"key_type"`
	PublicKey string `json:"public_key"`
}

type rotateRequest struct {
	DeviceID  string `json:"device_id"`
	RPID      string `json:"rp_id"` // external relying party id
	KeyType   string `json:"key_type"`
	PublicKey string `json:"public_key"`
}

type keyResponse struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	RPID      string    `json:"rp_id"`
	KeyType   string    `json:"key_type"`
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(k *domain.DeviceKey) keyResponse {
	return keyResponse{ID: k.ID, DeviceID: k.DeviceID, RPID: k.RPID, KeyType: k.KeyType, PublicKey: k.PublicKey, CreatedAt: k.CreatedAt}
}

// Handler serves the /device-keys and /zt/rotate-key routes.
type Handler struct {
	repo    repository.Repository
	service *devicekey.Service
	audit   audit.AuditLogger
	emitter telemetry.EventEmitter
}

// New returns a device-key handler. emitter may be nil.
func New(repo repository.Repository, service *devicekey.Service, auditLogger audit.AuditLogger, emitter telemetry.EventEmitter) *Handler {
	return &Handler{repo: repo, service: service, audit: auditLogger, emitter: emitter}
}

// Mount registers the device-key routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/device-keys", h.create)
	r.Get("/device-keys/{id}", h.get)
	r.Post("/zt/rotate-key", h.rotate)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DeviceID == "" || req.RPID == "" || req.KeyType == "" || req.PublicKey == "" {
		api.Error(w, http.StatusBadRequest, "device_id, rp_id, key_type and public_key are required")
		return
	}
	k := &domain.DeviceKey{
		ID:        uuid.New().String(),
		DeviceID:  req.DeviceID,
		RPID:      req.RPID,
		KeyType:   req.KeyType,
		PublicKey: req.PublicKey,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), k); err != nil {
		if db.IsInvalidID(err) {
			api.Error(w, http.StatusBadRequest, "device_id and rp_id must be valid uuids")
			return
		}
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.JSON(w, http.StatusCreated, toResponse(k))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	k, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if k == nil {
		api.Error(w, http.StatusNotFound, "device key not found")
		return
	}
	api.JSON(w, http.StatusOK, toResponse(k))
}

func (h *Handler) rotate(w http.ResponseWriter, r *http.Request) {
	var req rotateRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	_, err := h.service.Rotate(r.Context(), req.DeviceID, req.RPID, req.KeyType, req.PublicKey)
	if err != nil {
		switch {
		case errors.Is(err, devicekey.ErrRPNotFound):
			api.JSON(w, http.StatusOK, verification.Denied(verification.ReasonRPNotFound))
		case errors.Is(err, devicekey.ErrInvalidKey):
			api.Error(w, http.StatusBadRequest, err.Error())
		default:
			api.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	h.audit.Record(r.Context(), audit.Event{
		DeviceID: req.DeviceID,
		RPID:     req.RPID,
		Action:   "zt_rotate_key",
		Outcome:  verification.StatusOK,
	})
	telemetry.EmitAsync(h.emitter, &telemetrydomain.Event{
		EventType: "zt_rotate_key",
		DeviceID:  req.DeviceID,
		RPID:      req.RPID,
		Outcome:   verification.StatusOK,
		Source:    "api",
		CreatedAt: time.Now().UTC(),
	})
	api.JSON(w, http.StatusOK, verification.OK())
}
