package handler

import (
	"net/http"

	"github.com/go-api-auth/internal/application/verification"
)

// VerificationHandler handles the phone verification-code endpoints.
type VerificationHandler struct {
	svc verification.Service
}

func NewVerificationHandler(svc verification.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

type sendCodeRequest struct {
	Phone   string `json:"phone" validate:"required,max=32"`
	Linking bool   `json:"linking"`
}

type verifyCodeRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (h *VerificationHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.SendCode(r.Context(), req.Phone, req.Linking); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification code sent"})
}

func (h *VerificationHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.CheckCode(r.Context(), req.Phone, req.Code); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "phone verified"})
}
