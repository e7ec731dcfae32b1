package handler

import (
	"context"

	"github.com/go-api-auth/internal/domain"
	"github.com/stretchr/testify/mock"
)

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) pair(args mock.Arguments) (*domain.TokenPair, error) {
	if p, _ := args.Get(0).(*domain.TokenPair); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	return m.pair(m.Called(ctx, email, password))
}

func (m *mockSessionSvc) Signup(ctx context.Context, req domain.SignupRequest) (*domain.TokenPair, error) {
	return m.pair(m.Called(ctx, req))
}

func (m *mockSessionSvc) Refresh(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func (m *mockSessionSvc) Logout(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

func (m *mockSessionSvc) Authenticate(ctx context.Context, accessToken string) (*domain.TokenClaims, error) {
	args := m.Called(ctx, accessToken)
	if c, _ := args.Get(0).(*domain.TokenClaims); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) LinkSocial(ctx context.Context, phone, socialID, provider string) (*domain.TokenPair, error) {
	return m.pair(m.Called(ctx, phone, socialID, provider))
}

func (m *mockSessionSvc) SocialLogin(ctx context.Context, provider, code string) (*domain.SocialLoginResult, error) {
	args := m.Called(ctx, provider, code)
	if r, _ := args.Get(0).(*domain.SocialLoginResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockVerificationSvc struct{ mock.Mock }

func (m *mockVerificationSvc) SendCode(ctx context.Context, phone string, linking bool) error {
	return m.Called(ctx, phone, linking).Error(0)
}

func (m *mockVerificationSvc) CheckCode(ctx context.Context, phone, code string) error {
	return m.Called(ctx, phone, code).Error(0)
}

func (m *mockVerificationSvc) RequireVerified(ctx context.Context, phone string) error {
	return m.Called(ctx, phone).Error(0)
}

func (m *mockVerificationSvc) ConsumeVerified(ctx context.Context, phone string) error {
	return m.Called(ctx, phone).Error(0)
}

type mockUserLister struct{ mock.Mock }

func (m *mockUserLister) List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error) {
	args := m.Called(ctx, limit, cursor)
	users, _ := args.Get(0).([]domain.User)
	return users, args.String(1), args.Error(2)
}
