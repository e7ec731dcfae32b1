package handler

import (
	"net/http"

	"github.com/go-api-auth/internal/application/session"
	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// SessionHandler handles signup, login, token refresh, logout and social sign-in.
type SessionHandler struct {
	svc    session.Service
	cookie CookieOptions
}

func NewSessionHandler(svc session.Service, cookie CookieOptions) *SessionHandler {
	return &SessionHandler{svc: svc, cookie: cookie}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type socialLoginRequest struct {
	Code string `json:"code" validate:"required"`
}

type linkSocialRequest struct {
	Phone    string `json:"phone" validate:"required,max=32"`
	SocialID string `json:"socialId" validate:"required"`
	Provider string `json:"provider"`
}

func (h *SessionHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	pair, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	h.writeTokens(w, http.StatusCreated, pair)
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	pair, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpError(w, err)
		return
	}
	h.writeTokens(w, http.StatusOK, pair)
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookieName)
	if err != nil || c.Value == "" {
		writeError(w, http.StatusUnauthorized, "refresh token cookie required")
		return
	}
	access, err := h.svc.Refresh(r.Context(), c.Value)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{AccessToken: access})
}

// Logout accepts expired access tokens so that a client can always end its session.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid authorization header")
		return
	}
	if err := h.svc.Logout(r.Context(), token); err != nil {
		httpError(w, err)
		return
	}
	h.cookie.clear(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}

func (h *SessionHandler) SocialLogin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if provider == "" {
		provider = domain.ProviderKakao
	}
	var req socialLoginRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	res, err := h.svc.SocialLogin(r.Context(), provider, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	if res.PhoneRequired {
		writeJSON(w, http.StatusOK, SocialLoginEnvelope{
			PhoneRequired: true,
			SocialID:      res.SocialID,
			Provider:      res.Provider,
		})
		return
	}
	h.cookie.set(w, res.Tokens.RefreshToken)
	writeJSON(w, http.StatusOK, SocialLoginEnvelope{AccessToken: res.Tokens.AccessToken, Provider: res.Provider})
}

func (h *SessionHandler) LinkSocial(w http.ResponseWriter, r *http.Request) {
	var req linkSocialRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err)
		return
	}
	if req.Provider == "" {
		req.Provider = domain.ProviderKakao
	}
	pair, err := h.svc.LinkSocial(r.Context(), req.Phone, req.SocialID, req.Provider)
	if err != nil {
		httpError(w, err)
		return
	}
	h.writeTokens(w, http.StatusOK, pair)
}

func (h *SessionHandler) writeTokens(w http.ResponseWriter, status int, pair *domain.TokenPair) {
	h.cookie.set(w, pair.RefreshToken)
	writeJSON(w, status, TokenEnvelope{AccessToken: pair.AccessToken})
}
