// Package handler exposes the challenge and direct-verification routes over
// HTTP.
package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zt-totp/backend/internal/api"
	"zt-totp/backend/internal/audit"
	"zt-totp/backend/internal/challenge"
	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/telemetry"
	telemetrydomain "zt-totp/backend/internal/telemetry/domain"
	"zt-totp/backend/internal/totp"
	"zt-totp/backend/internal/verification"
)

type challengeRequest struct {
	DeviceID string `json:"device_id"`
	RPID     string `json:"rp_id"`
}

type challengeResponse struct {
	Nonce     string `json:"nonce"`
	ExpiresIn int    `json:"expires_in"`
}

type deviceProof struct {
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

type verifyRequest struct {
	UserID      string      `json:"user_id"`
	DeviceID    string      `json:"device_id"`
	RPID        string      `json:"rp_id"`
	OTP         string      `json:"otp"`
	DeviceProof deviceProof `json:"device_proof"`
}

// Handler serves the /zt/challenge and /zt/verify routes.
type Handler struct {
	challenges *challenge.Service
	verifier   *verification.Service
	audit      audit.AuditLogger
	emitter    telemetry.EventEmitter
}

// New returns a verification handler. emitter may be nil.
func New(challenges *challenge.Service, verifier *verification.Service, auditLogger audit.AuditLogger, emitter telemetry.EventEmitter) *Handler {
	return &Handler{challenges: challenges, verifier: verifier, audit: auditLogger, emitter: emitter}
}

// Mount registers the verification routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/zt/challenge", h.issueChallenge)
	r.Post("/zt/verify", h.verify)
}

func (h *Handler) issueChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DeviceID == "" || req.RPID == "" {
		api.Error(w, http.StatusBadRequest, "device_id and rp_id are required")
		return
	}
	issued, err := h.challenges.Issue(r.Context(), req.DeviceID, req.RPID)
	if err != nil {
		if db.IsInvalidID(err) {
			api.Error(w, http.StatusBadRequest, "device_id must be a valid uuid")
			return
		}
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.JSON(w, http.StatusOK, challengeResponse{Nonce: issued.Nonce, ExpiresIn: issued.ExpiresIn})
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
	result, err := h.verifier.Verify(r.Context(), verification.Input{
		UserID:    req.UserID,
		DeviceID:  req.DeviceID,
		RPID:      req.RPID,
		OTP:       req.OTP,
		Nonce:     req.DeviceProof.Nonce,
		Signature: req.DeviceProof.Signature,
	})
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if result.Status == verification.StatusOK {
		log.Printf("zt_verify ok duration_ms=%d", time.Since(started).Milliseconds())
	} else {
		log.Printf("zt_verify denied reason=%s", result.Reason)
	}
	h.audit.Record(r.Context(), audit.Event{
		UserID: req.UserID, DeviceID: req.DeviceID, RPID: req.RPID,
		Action: "zt_verify", Outcome: result.Status, Metadata: result.Reason,
	})
	telemetry.EmitAsync(h.emitter, &telemetrydomain.Event{
		EventType: "zt_verify",
		UserID:    req.UserID,
		DeviceID:  req.DeviceID,
		RPID:      req.RPID,
		Outcome:   result.Status,
		Reason:    result.Reason,
		Source:    "api",
		CreatedAt: time.Now().UTC(),
	})
	api.JSON(w, http.StatusOK, result)
}
