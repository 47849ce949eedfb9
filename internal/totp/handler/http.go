// Package handler exposes TOTP registration and standalone verification over
// HTTP.
package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zt-totp/backend/internal/api"
	"zt-totp/backend/internal/audit"
	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/telemetry"
	telemetrydomain "zt-totp/backend/internal/telemetry/domain"
	"zt-totp/backend/internal/totp"
	"zt-totp/backend/internal/verification"
)

type registerRequest struct {
	UserID      string `json:"user_id"`
	RPID        string `json:"rp_id"`
	AccountName string `json:"account_name"`
	Issuer      string `json:"issuer"`
}

type registerResponse struct {
	OtpauthURI    string   `json:"otpauth_uri"`
	RecoveryCodes []string `json:"recovery_codes"`
}

type verifyRequest struct {
	UserID string `json:"user_id"`
	RPID   string `json:"rp_id"`
	OTP    string `json:"otp"`
}

type recoveryRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

// Handler serves the /totp routes.
type Handler struct {
	service *totp.Service
	audit   audit.AuditLogger
	emitter telemetry.EventEmitter
}

// New returns a TOTP handler. emitter may be nil.
func New(service *totp.Service, auditLogger audit.AuditLogger, emitter telemetry.EventEmitter) *Handler {
	return &Handler{service: service, audit: auditLogger, emitter: emitter}
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

// Mount registers the TOTP routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/totp/register", h.register)
	r.Post("/totp/verify", h.verify)
	r.Post("/totp/recovery/verify", h.recoveryVerify)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" || req.RPID == "" || req.AccountName == "" || req.Issuer == "" {
		api.Error(w, http.StatusBadRequest, "user_id, rp_id, account_name and issuer are required")
		return
	}
	reg, err := h.service.Register(r.Context(), req.UserID, req.RPID, req.AccountName, req.Issuer)
	if err != nil {
		switch {
		case errors.Is(err, totp.ErrUserNotFound):
			api.Error(w, http.StatusNotFound, "user not found")
		case errors.Is(err, db.ErrConflict):
			api.Error(w, http.StatusConflict, "totp already registered")
		default:
			api.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	h.audit.Record(r.Context(), audit.Event{
		UserID: req.UserID, RPID: req.RPID,
		Action: "totp_register", Outcome: verification.StatusOK,
	})
	h.emit("totp_register", req.UserID, req.RPID, verification.StatusOK, "")
	api.JSON(w, http.StatusCreated, registerResponse{
		OtpauthURI:    reg.OtpauthURI,
		RecoveryCodes: reg.RecoveryCodes,
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !totp.ValidCode(req.OTP) {
		api.Error(w, http.StatusBadRequest, "otp must be 6-8 digits")
		return
	}
	started := time.Now()
	ok, err := h.service.VerifyCode(r.Context(), req.UserID, req.RPID, req.OTP)
	if err != nil {
		if errors.Is(err, totp.ErrNotRegistered) {
			api.Error(w, http.StatusNotFound, "totp not registered")
			return
		}
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	result := verification.OK()
	if !ok {
		result = verification.Denied(verification.ReasonInvalidOTP)
		log.Printf("totp_verify denied reason=%s", result.Reason)
	} else {
		log.Printf("totp_verify ok duration_ms=%d", time.Since(started).Milliseconds())
	}
	h.audit.Record(r.Context(), audit.Event{
		UserID: req.UserID, RPID: req.RPID,
		Action: "totp_verify", Outcome: result.Status, Metadata: result.Reason,
	})
	h.emit("totp_verify", req.UserID, req.RPID, result.Status, result.Reason)
	api.JSON(w, http.StatusOK, result)
}

func (h *Handler) recoveryVerify(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := h.service.VerifyRecovery(r.Context(), req.UserID, req.Code)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	result := verification.OK()
	if !ok {
		result = verification.Denied(verification.ReasonInvalidRecoveryCode)
		log.Printf("totp_recovery denied reason=%s", result.Reason)
	} else {
		log.Printf("totp_recovery ok")
	}
	h.audit.Record(r.Context(), audit.Event{
		UserID: req.UserID,
		Action: "totp_recovery", Outcome: result.Status, Metadata: result.Reason,
	})
	h.emit("totp_recovery", req.UserID, "", result.Status, result.Reason)
	api.JSON(w, http.StatusOK, result)
}
