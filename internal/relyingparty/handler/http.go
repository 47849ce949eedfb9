// Package handler exposes relying-party CRUD over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"zt-totp/backend/internal/api"
	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/relyingparty/domain"
	"zt-totp/backend/internal/relyingparty/repository"
)

type createRequest struct {
	RPID        string `json:"rp_id"`
	DisplayName string `json:"display_name"`
}

type rpResponse struct {
	ID          string    `json:"id"`
	RPID        string    `json:"rp_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func toResponse(rp *domain.RelyingParty) rpResponse {
	return rpResponse{ID: rp.ID, RPID: rp.RPID, DisplayName: rp.DisplayName, CreatedAt: rp.CreatedAt}
}

// Handler serves the /relying-parties routes.
type Handler struct {
	repo repository.Repository
}

// New returns a relying-party handler.
func New(repo repository.Repository) *Handler {
	return &Handler{repo: repo}
}

// Mount registers the relying-party routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/relying-parties", h.create)
	r.Get("/relying-parties/{id}", h.get)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	rp := &domain.RelyingParty{
		ID:          uuid.New().String(),
		RPID:        req.RPID,
		DisplayName: req.DisplayName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := rp.Validate(); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Create(r.Context(), rp); err != nil {
		if errors.Is(err, db.ErrConflict) {
			api.Error(w, http.StatusConflict, "rp_id already exists")
			return
		}
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.JSON(w, http.StatusCreated, toResponse(rp))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rp, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rp == nil {
		api.Error(w, http.StatusNotFound, "relying party not found")
		return
	}
	api.JSON(w, http.StatusOK, toResponse(rp))
}
