package identity

import (
	"context"
	"slices"

	"github.com/go-api-auth/internal/domain"
)

type Service interface {
	// Resolve finds the user a token subject refers to: by social id under
	// the named provider for "<provider>:<id>" subjects, by email otherwise.
	Resolve(ctx context.Context, identifier string) (*domain.User, error)
}

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindBySocialIDAndProvider(ctx context.Context, socialID, provider string) (*domain.User, error)
}

type service struct {
	users     userFinder
	providers []string
}

type ServiceDeps struct {
	Users     userFinder
	Providers []string
}

func NewService(deps ServiceDeps) Service {
	return &service{users: deps.Users, providers: deps.Providers}
}

func (s *service) Resolve(ctx context.Context, identifier string) (*domain.User, error) {
	if identifier == "" {
		return nil, domain.ErrUserNotFound
	}
	if provider, socialID, ok := domain.ParseSocialSubject(identifier); ok {
		if !slices.Contains(s.providers, provider) {
			return nil, domain.ErrUserNotFound
		}
		return s.users.FindBySocialIDAndProvider(ctx, socialID, provider)
	}
	return s.users.FindByEmail(ctx, identifier)
}
