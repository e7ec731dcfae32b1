// Package oauth adapts third-party identity providers to the social login flow.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-api-auth/internal/domain"
	"golang.org/x/oauth2"
)

// Provider exchanges an authorization code and reads the user profile from
// one identity provider.
type Provider interface {
	Name() string
	// ExchangeCode trades an authorization code for a provider credential.
	ExchangeCode(ctx context.Context, code string) (string, error)
	// FetchProfile reads the external profile the credential grants access to.
	FetchProfile(ctx context.Context, credential string) (*domain.ExternalProfile, error)
}

// Registry looks providers up by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name, or domain.ErrUnsupportedProvider.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", name, domain.ErrUnsupportedProvider)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// withClient makes oauth2 use client for the token exchange.
func withClient(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func externalErr(provider, op string, err error) error {
	return fmt.Errorf("%s %s: %w: %v", provider, op, domain.ErrExternalProvider, err)
}
