// Package handler exposes the cross-device login handshake over HTTP.
package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zt-totp/backend/internal/api"
	"zt-totp/backend/internal/audit"
	"zt-totp/backend/internal/login"
	logindomain "zt-totp/backend/internal/login/domain"
	"zt-totp/backend/internal/security"
	"zt-totp/backend/internal/telemetry"
	telemetrydomain "zt-totp/backend/internal/telemetry/domain"
	"zt-totp/backend/internal/totp"
	"zt-totp/backend/internal/verification"
)

type startRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type startResponse struct {
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	LoginID   string `json:"login_id,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

type statusResponse struct {
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Assertion string `json:"assertion,omitempty"`
}

type pendingResponse struct {
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	LoginID   string `json:"login_id,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
	RPID      string `json:"rp_id,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

type approveRequest struct {
	LoginID   string `json:"login_id"`
	DeviceID  string `json:"device_id"`
	RPID      string `json:"rp_id"`
	OTP       string `json:"otp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

type denyRequest struct {
	LoginID string `json:"login_id"`
	Reason  string `json:"reason"`
}

type recoveryRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type clearRequest struct {
	Email string `json:"email"`
}

type clearResponse struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Cleared int64  `json:"cleared"`
}

// Handler serves the /login routes.
type Handler struct {
	service    *login.Service
	assertions *security.AssertionProvider
	audit      audit.AuditLogger
	emitter    telemetry.EventEmitter
}

// New returns a login handler. assertions and emitter may be nil.
func New(service *login.Service, assertions *security.AssertionProvider, auditLogger audit.AuditLogger, emitter telemetry.EventEmitter) *Handler {
	return &Handler{service: service, assertions: assertions, audit: auditLogger, emitter: emitter}
}

// Mount registers the login routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/login/start", h.start)
	r.Get("/login/{id}/status", h.status)
	r.Get("/login/pending", h.pending)
	r.Post("/login/approve", h.approve)
	r.Post("/login/deny", h.deny)
	r.Post("/login/recovery", h.recovery)
	r.Post("/login/clear-pending", h.clearPending)
}

func (h *Handler) emit(eventType, userID, rpID, outcome, reason string) {
	telemetry.EmitAsync(h.emitter, &telemetrydomain.Event{
		EventType: eventType,
		UserID:    userID,
		RPID:      rpID,
		Outcome:   outcome,
		Reason:    reason,
		Source:    "api",
		CreatedAt: time.Now().UTC(),
	})
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !totp.ValidCode(req.OTP) {
		api.Error(w, http.StatusBadRequest, "otp must be 6-8 digits")
		return
	}
	res, err := h.service.Start(r.Context(), req.Email, req.OTP)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if res.Status != verification.StatusPending {
		log.Printf("login_start denied reason=%s", res.Reason)
	}
	h.audit.Record(r.Context(), audit.Event{
		Action: "login_start", Outcome: res.Status, Metadata: res.Reason,
	})
	h.emit("login_start", "", "", res.Status, res.Reason)
	api.JSON(w, http.StatusOK, startResponse{
		Status:    res.Status,
		Reason:    res.Reason,
		LoginID:   res.LoginID,
		ExpiresIn: res.ExpiresIn,
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := statusResponse{Status: res.Status, Reason: res.Reason}
	// An approved login yields a short-lived signed assertion the relying
	// party can validate offline.
	if res.Status == logindomain.StatusApproved && h.assertions != nil {
		token, _, err := h.assertions.Issue(chi.URLParam(r, "id"), res.UserID, res.RPID)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		out.Assertion = token
	}
	api.JSON(w, http.StatusOK, out)
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		api.Error(w, http.StatusBadRequest, "email query parameter is required")
		return
	}
	res, err := h.service.PendingForUser(r.Context(), email)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.JSON(w, http.StatusOK, pendingResponse{
		Status:    res.Status,
		Reason:    res.Reason,
		LoginID:   res.LoginID,
		DeviceID:  res.DeviceID,
		RPID:      res.RPID,
		Nonce:     res.Nonce,
		ExpiresIn: res.ExpiresIn,
	})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !totp.ValidCode(req.OTP) {
		api.Error(w, http.StatusBadRequest, "otp must be 6-8 digits")
		return
	}
	res, err := h.service.Approve(r.Context(), login.ApproveInput{
		LoginID:   req.LoginID,
		DeviceID:  req.DeviceID,
		RPID:      req.RPID,
		OTP:       req.OTP,
		Nonce:     req.Nonce,
		Signature: req.Signature,
	})
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if res.Status != logindomain.StatusApproved {
		log.Printf("login_approve denied reason=%s", res.Reason)
	}
	h.audit.Record(r.Context(), audit.Event{
		UserID: res.UserID, DeviceID: req.DeviceID, RPID: req.RPID,
		Action: "login_approve", Outcome: res.Status, Metadata: res.Reason,
	})
	h.emit("login_approve", res.UserID, res.RPID, res.Status, res.Reason)
	api.JSON(w, http.StatusOK, statusResponse{Status: res.Status, Reason: res.Reason})
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request) {
	var req denyRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.service.Deny(r.Context(), req.LoginID, req.Reason)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.audit.Record(r.Context(), audit.Event{
		UserID: res.UserID, RPID: res.RPID,
		Action: "login_deny", Outcome: res.Status, Metadata: res.Reason,
	})
	h.emit("login_deny", res.UserID, res.RPID, res.Status, res.Reason)
	api.JSON(w, http.StatusOK, statusResponse{Status: res.Status, Reason: res.Reason})
}

func (h *Handler) recovery(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.service.Recovery(r.Context(), req.Email, req.Code)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if res.Status != verification.StatusOK {
		log.Printf("login_recovery denied reason=%s", res.Reason)
	}
	h.audit.Record(r.Context(), audit.Event{
		Action: "login_recovery", Outcome: res.Status, Metadata: res.Reason,
	})
	h.emit("login_recovery", "", "", res.Status, res.Reason)
	api.JSON(w, http.StatusOK, res)
}

func (h *Handler) clearPending(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.service.ClearPending(r.Context(), req.Email)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.audit.Record(r.Context(), audit.Event{
		Action: "login_clear_pending", Outcome: res.Status, Metadata: res.Reason,
	})
	h.emit("login_clear_pending", "", "", res.Status, res.Reason)
	api.JSON(w, http.StatusOK, clearResponse{Status: res.Status, Reason: res.Reason, Cleared: res.Cleared})
}
