package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-api-auth/internal/domain"
)

// memUsers is an in-memory user store with the same lookup semantics as
// the DynamoDB repository.
type memUsers struct {
	mu    sync.Mutex
	byID  map[string]domain.User
	saves int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]domain.User)}
}

func (m *memUsers) find(match func(domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email != "" && u.Email == email })
}

func (m *memUsers) FindByPhone(_ context.Context, phone string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Phone != "" && u.Phone == phone })
}

func (m *memUsers) FindBySocialIDAndProvider(_ context.Context, socialID, provider string) (*domain.User, error) {
	return m.find(func(u domain.User) bool {
		return u.SocialID != "" && u.SocialID == socialID && u.Provider == provider
	})
}

// Save rejects lookup values held by another user, like the guarded
// DynamoDB store.
func (m *memUsers) Save(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.byID {
		if other.UserID == u.UserID {
			continue
		}
		switch {
		case u.Email != "" && other.Email == u.Email:
			return domain.ErrDuplicateEmail
		case u.Phone != "" && other.Phone == u.Phone:
			return domain.ErrDuplicatePhone
		case u.SocialID != "" && other.SocialID == u.SocialID && other.Provider == u.Provider:
			return domain.ErrLinkConflict
		}
	}
	m.byID[u.UserID] = *u
	m.saves++
	return nil
}

func (m *memUsers) Delete(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, u.UserID)
	return nil
}

// staleSocialUsers misses the first social lookups, as a read racing a
// concurrent insert would.
type staleSocialUsers struct {
	*memUsers
	misses int
}

func (s *staleSocialUsers) FindBySocialIDAndProvider(ctx context.Context, socialID, provider string) (*domain.User, error) {
	if s.misses > 0 {
		s.misses--
		return nil, domain.ErrUserNotFound
	}
	return s.memUsers.FindBySocialIDAndProvider(ctx, socialID, provider)
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// fakeProvider is an identity provider returning a fixed profile.
type fakeProvider struct {
	name    string
	profile domain.ExternalProfile
	err     error
	delay   time.Duration
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if p.err != nil {
		return "", p.err
	}
	return "credential-" + code, nil
}

func (p *fakeProvider) FetchProfile(_ context.Context, _ string) (*domain.ExternalProfile, error) {
	profile := p.profile
	return &profile, nil
}

// discardSender swallows verification messages; codes are read from Redis.
type discardSender struct{}

func (discardSender) SendSMS(context.Context, string, string) error { return nil }
