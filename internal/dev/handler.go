// Package dev holds debug routes that disclose secrets for local protocol
// debugging. The server wires them only when debug endpoints are enabled at
// startup and the environment is not production; they are never gated per
// request.
package dev

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zt-totp/backend/internal/api"
	"zt-totp/backend/internal/security"
	"zt-totp/backend/internal/totp"
	"zt-totp/backend/internal/verification"
)

// Handler serves the /debug routes.
type Handler struct {
	secrets verification.SecretRepo
	keys    verification.DeviceKeyRepo
	rps     verification.RelyingPartyRepo
	vault   *security.Vault
}

// New returns a debug handler.
func New(secrets verification.SecretRepo, keys verification.DeviceKeyRepo, rps verification.RelyingPartyRepo, vault *security.Vault) *Handler {
	return &Handler{secrets: secrets, keys: keys, rps: rps, vault: vault}
}

// Mount registers the debug routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/debug/totp/code", h.totpCode)
	r.Get("/debug/totp/state", h.totpState)
	r.Get("/debug/totp/secret", h.totpSecret)
	r.Post("/debug/zt/proof", h.ztProof)
}

func (h *Handler) decryptSecret(r *http.Request) (string, int, string) {
	userID := r.URL.Query().Get("user_id")
	rpID := r.URL.Query().Get("rp_id")
	if userID == "" || rpID == "" {
		return "", http.StatusBadRequest, "user_id and rp_id are required"
	}
	row, err := h.secrets.GetSecret(r.Context(), userID, rpID)
	if err != nil {
		return "", http.StatusInternalServerError, "internal error"
	}
	if row == nil {
		return "", http.StatusNotFound, "totp not registered"
	}
	secret, err := h.vault.Decrypt(row.SecretEncrypted)
	if err != nil {
		return "", http.StatusInternalServerError, "internal error"
	}
	return secret, 0, ""
}

func (h *Handler) totpCode(w http.ResponseWriter, r *http.Request) {
	secret, status, msg := h.decryptSecret(r)
	if status != 0 {
		api.Error(w, status, msg)
		return
	}
	code, err := totp.Current(secret)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"otp": code})
}

func (h *Handler) totpState(w http.ResponseWriter, r *http.Request) {
	secret, status, msg := h.decryptSecret(r)
	if status != 0 {
		api.Error(w, status, msg)
		return
	}
	code, err := totp.Current(secret)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{
		"otp":         code,
		"server_time": time.Now().Unix(),
	})
}

func (h *Handler) totpSecret(w http.ResponseWriter, r *http.Request) {
	secret, status, msg := h.decryptSecret(r)
	if status != 0 {
		api.Error(w, status, msg)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"secret": secret})
}

type proofRequest struct {
	DeviceID  string `json:"device_id"`
	RPID      string `json:"rp_id"`
	OTP       string `json:"otp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// ztProof reports why a device proof verifies or not: key format, lengths,
// and the exact canonical message, so client signing bugs are diagnosable.
func (h *Handler) ztProof(w http.ResponseWriter, r *http.Request) {
	var req proofRequest
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	rp, err := h.rps.GetByExternalID(r.Context(), req.RPID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rp == nil {
		api.Error(w, http.StatusNotFound, "relying party not found")
		return
	}
	key, err := h.keys.GetByDeviceAndRP(r.Context(), req.DeviceID, rp.ID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if key == nil {
		api.Error(w, http.StatusNotFound, "device key not found")
		return
	}

	message := security.BuildProofMessage(req.Nonce, req.DeviceID, req.RPID, req.OTP)
	signatureLen := 0
	if raw, err := base64.StdEncoding.DecodeString(req.Signature); err == nil {
		signatureLen = len(raw)
	}
	publicLen := 0
	if raw, err := base64.StdEncoding.DecodeString(key.PublicKey); err == nil {
		publicLen = len(raw)
	}
	format := "der"
	if publicLen == 32 {
		format = "raw"
	}
	valid := security.VerifyProof(key.KeyType, key.PublicKey, message, req.Signature)
	api.JSON(w, http.StatusOK, map[string]any{
		"key_type":          key.KeyType,
		"public_key_len":    publicLen,
		"public_key_format": format,
		"signature_len":     signatureLen,
		"message":           string(message),
		"signature_valid":   valid,
	})
}
