// Package handler exposes user CRUD over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"zt-totp/backend/internal/api"
	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/user/domain"
	"zt-totp/backend/internal/user/repository"
)

type createRequest struct {
	Email string `json:"email"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

// Handler serves the /users routes.
type Handler struct {
	repo repository.Repository
}

// New returns a user handler.
func New(repo repository.Repository) *Handler {
	return &Handler{repo: repo}
}

// Mount registers the user routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/users", h.create)
	r.Get("/users/{id}", h.get)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	u := &domain.User{ID: uuid.New().String(), Email: req.Email, CreatedAt: time.Now().UTC()}
	if err := u.Validate(); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Create(r.Context(), u); err != nil {
		if errors.Is(err, db.ErrConflict) {
			api.Error(w, http.StatusConflict, "email already exists")
			return
		}
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.JSON(w, http.StatusCreated, toResponse(u))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	u, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u == nil {
		api.Error(w, http.StatusNotFound, "user not found")
		return
	}
	api.JSON(w, http.StatusOK, toResponse(u))
}
