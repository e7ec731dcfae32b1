package domain

import (
	"strings"
	"time"
)

// User is the durable account record. A user is reachable by email, by
// (SocialID, Provider) or by phone; at least one of them is set.
type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Username     string    `json:"username" dynamodbav:"username,omitempty"`
	Email        string    `json:"email,omitempty" dynamodbav:"email,omitempty"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash,omitempty"`
	Phone        string    `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	SocialID     string    `json:"social_id,omitempty" dynamodbav:"social_id,omitempty"`
	Provider     string    `json:"provider,omitempty" dynamodbav:"provider,omitempty"`
	Role         string    `json:"role" dynamodbav:"role"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Subject is the identifier tokens are issued for: the email when the
// account has one, the provider-scoped social id otherwise.
func (u *User) Subject() string {
	if u.Email != "" {
		return u.Email
	}
	return SocialSubject(u.Provider, u.SocialID)
}

// SocialSubject scopes a social id to its provider, e.g. "kakao:4213377001".
// Ids issued by different providers may collide; subjects may not.
func SocialSubject(provider, socialID string) string {
	return provider + ":" + socialID
}

// ParseSocialSubject splits a subject built by SocialSubject. Emails never
// match: an unquoted local part cannot contain a colon.
func ParseSocialSubject(subject string) (provider, socialID string, ok bool) {
	provider, socialID, ok = strings.Cut(subject, ":")
	if !ok || provider == "" || socialID == "" || strings.Contains(provider, "@") {
		return "", "", false
	}
	return provider, socialID, true
}

type SignupRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"required,max=32"`
}

// ExternalProfile is what a social identity provider tells us about a user.
type ExternalProfile struct {
	ExternalID string
	Email      string
}
