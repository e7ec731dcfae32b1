package domain

import "time"

// TokenKind distinguishes short-lived access tokens from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// TokenClaims is the decoded content of a bearer token.
type TokenClaims struct {
	Subject   string
	Role      string
	Kind      TokenKind
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SocialLoginResult carries either a token pair or, when the account has no
// phone on file yet, the external id the client needs to finish linking.
type SocialLoginResult struct {
	Tokens        *TokenPair
	PhoneRequired bool
	SocialID      string
	Provider      string
}
