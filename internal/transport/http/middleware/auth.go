package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-api-auth/internal/domain"
)

type contextKey string

const principalKey contextKey = "principal"

// Authenticator validates an access token presented on a request.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.TokenClaims, error)
}

// Resolver maps a token subject to its user record.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (*domain.User, error)
}

// Principal is the authenticated caller of a request.
type Principal struct {
	User   *domain.User
	Claims *domain.TokenClaims
	Token  string
}

// Auth returns middleware that validates the Bearer token, resolves its
// subject and injects the resulting Principal into the request context.
func Auth(authn Authenticator, users Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			claims, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			u, err := users.Resolve(r.Context(), claims.Subject)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			p := &Principal{User: u, Claims: claims, Token: token}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the authenticated caller from the request context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRevoked):
		writeJSONError(w, http.StatusUnauthorized, "token revoked")
	case errors.Is(err, domain.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
	}
}
