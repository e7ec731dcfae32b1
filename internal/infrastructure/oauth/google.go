package oauth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"google.golang.org/api/idtoken"
)

// Google signs users in with Google accounts. The profile is read from the
// ID token returned by the code exchange.
type Google struct {
	oauth    *oauth2.Config
	client   *http.Client
	validate func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

func NewGoogle(c config.OAuthClient, timeout time.Duration) *Google {
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email"},
		},
		client:   newHTTPClient(timeout),
		validate: idtoken.Validate,
	}
}

func (g *Google) Name() string { return domain.ProviderGoogle }

// ExchangeCode returns the ID token issued for code.
func (g *Google) ExchangeCode(ctx context.Context, code string) (string, error) {
	tok, err := g.oauth.Exchange(withClient(ctx, g.client), code)
	if err != nil {
		return "", externalErr(g.Name(), "exchange", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return "", externalErr(g.Name(), "exchange", errors.New("no id_token in response"))
	}
	return idToken, nil
}

// FetchProfile validates the ID token against the client id.
func (g *Google) FetchProfile(ctx context.Context, idToken string) (*domain.ExternalProfile, error) {
	p, err := g.validate(ctx, idToken, g.oauth.ClientID)
	if err != nil {
		return nil, externalErr(g.Name(), "verify id token", err)
	}
	email, _ := p.Claims["email"].(string)
	if verified, ok := p.Claims["email_verified"].(bool); ok && !verified {
		email = ""
	}
	return &domain.ExternalProfile{ExternalID: p.Subject, Email: email}, nil
}
