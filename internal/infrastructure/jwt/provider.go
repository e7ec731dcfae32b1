package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload fields.
type Claims struct {
	Role string           `json:"role"`
	Kind domain.TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 JWTs. It holds no state besides the key
// and is safe for concurrent use.
type Provider struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &Provider{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}, nil
}

// Issue signs a token of the given kind for subject.
func (p *Provider) Issue(subject, role string, kind domain.TokenKind) (string, error) {
	ttl, err := p.ttl(kind)
	if err != nil {
		return "", err
	}
	now := p.now()
	claims := Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.New(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// IssuePair signs an access token and a refresh token for subject.
func (p *Provider) IssuePair(subject, role string) (*domain.TokenPair, error) {
	access, err := p.Issue(subject, role, domain.TokenAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := p.Issue(subject, role, domain.TokenRefresh)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Parse verifies tokenStr and returns its claims.
// An expired token with a valid signature yields its claims together with
// domain.ErrTokenExpired; every other failure is domain.ErrMalformedToken.
func (p *Provider) Parse(tokenStr string) (*domain.TokenClaims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, p.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err == nil {
		return toDomain(claims), nil
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}

	// Expired: re-check the signature alone so the claims can be trusted.
	expired := &Claims{}
	if _, err := jwt.ParseWithClaims(tokenStr, expired, p.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
	return toDomain(expired), domain.ErrTokenExpired
}

// IsValid reports whether tokenStr carries a valid signature and is not expired.
func (p *Provider) IsValid(tokenStr string) bool {
	_, err := p.Parse(tokenStr)
	return err == nil
}

func (p *Provider) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return p.secret, nil
}

func (p *Provider) ttl(kind domain.TokenKind) (time.Duration, error) {
	switch kind {
	case domain.TokenAccess:
		return p.accessTTL, nil
	case domain.TokenRefresh:
		return p.refreshTTL, nil
	default:
		return 0, fmt.Errorf("unknown token kind %q", kind)
	}
}

func toDomain(c *Claims) *domain.TokenClaims {
	tc := &domain.TokenClaims{
		Subject: c.Subject,
		Role:    c.Role,
		Kind:    c.Kind,
	}
	if c.ExpiresAt != nil {
		tc.ExpiresAt = c.ExpiresAt.Time
	}
	return tc
}
