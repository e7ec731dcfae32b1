package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/pkg/validate"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TokenEnvelope carries a freshly minted access token. The refresh token
// travels in a cookie only.
type TokenEnvelope struct {
	AccessToken string `json:"accessToken"`
}

// SocialLoginEnvelope is either a token or a request to verify a phone
// number before the social account can be used.
type SocialLoginEnvelope struct {
	AccessToken   string `json:"accessToken,omitempty"`
	PhoneRequired bool   `json:"phoneRequired"`
	SocialID      string `json:"socialId,omitempty"`
	Provider      string `json:"provider,omitempty"`
}

// SafeUser is the user representation returned to clients.
type SafeUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	SocialID  string    `json:"socialId,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created"`
}

// UsersPageEnvelope wraps one page of the admin user listing.
type UsersPageEnvelope struct {
	Data       []*SafeUser `json:"data"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

func toSafeUser(u *domain.User) *SafeUser {
	if u == nil {
		return nil
	}
	return &SafeUser{
		ID:        u.UserID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		SocialID:  u.SocialID,
		Provider:  u.Provider,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decodeBody decodes the JSON request body into dst and validates it.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", domain.ErrBadRequest)
	}
	return validate.Struct(dst)
}
