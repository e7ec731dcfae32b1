package handler

import (
	"net/http"
	"strconv"

	"github.com/go-api-auth/internal/application/user"
	"github.com/go-api-auth/internal/transport/http/middleware"
)

// AccountHandler serves the authenticated user and admin endpoints.
type AccountHandler struct {
	users user.Service
}

func NewAccountHandler(users user.Service) *AccountHandler {
	return &AccountHandler{users: users}
}

// Me returns the caller's own record.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, toSafeUser(p.User))
}

func (h *AccountHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "admin dashboard"})
}

func (h *AccountHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	users, next, err := h.users.List(r.Context(), perPage, r.URL.Query().Get("cursor"))
	if err != nil {
		httpError(w, err)
		return
	}
	safe := make([]*SafeUser, len(users))
	for i := range users {
		safe[i] = toSafeUser(&users[i])
	}
	writeJSON(w, http.StatusOK, UsersPageEnvelope{Data: safe, NextCursor: next})
}
