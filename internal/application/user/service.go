package user

import (
	"context"

	"github.com/go-api-auth/internal/domain"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type Service interface {
	// List returns one page of users and the cursor for the next page,
	// empty when there are no more.
	List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error)
}

type userStore interface {
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
}

type service struct {
	repo userStore
}

type ServiceDeps struct {
	UserRepo userStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo}
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error) {
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	users, next, err := s.repo.ScanPage(ctx, int32(limit), cursor)
	if err != nil {
		return nil, "", err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, next, nil
}
