package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/infrastructure/oauth"
	"github.com/go-api-auth/internal/pkg/id"
	"github.com/go-api-auth/internal/pkg/validate"
)

const blacklistValue = "logout"

type Service interface {
	Login(ctx context.Context, email, password string) (*domain.TokenPair, error)
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.TokenPair, error)
	// Refresh mints a new access token from the subject's current refresh token.
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, accessToken string) error
	// Authenticate validates an access token presented on a request.
	Authenticate(ctx context.Context, accessToken string) (*domain.TokenClaims, error)
	LinkSocial(ctx context.Context, phone, socialID, provider string) (*domain.TokenPair, error)
	SocialLogin(ctx context.Context, provider, code string) (*domain.SocialLoginResult, error)
}

type userStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	FindBySocialIDAndProvider(ctx context.Context, socialID, provider string) (*domain.User, error)
	Save(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, u *domain.User) error
}

type kvStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

type tokenCodec interface {
	Issue(subject, role string, kind domain.TokenKind) (string, error)
	IssuePair(subject, role string) (*domain.TokenPair, error)
	Parse(token string) (*domain.TokenClaims, error)
}

type phoneVerifier interface {
	RequireVerified(ctx context.Context, phone string) error
	ConsumeVerified(ctx context.Context, phone string) error
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Matches(plaintext, digest string) bool
}

type phoneNormalizer interface {
	Normalize(raw string) (string, error)
}

type providerRegistry interface {
	Get(name string) (oauth.Provider, error)
}

type service struct {
	users        userStore
	store        kvStore
	tokens       tokenCodec
	verifier     phoneVerifier
	hasher       passwordHasher
	phones       phoneNormalizer
	providers    providerRegistry
	refreshTTL   time.Duration
	oauthTimeout time.Duration
	now          func() time.Time
}

type ServiceDeps struct {
	Users        userStore
	Store        kvStore
	Tokens       tokenCodec
	Verifier     phoneVerifier
	Hasher       passwordHasher
	Phones       phoneNormalizer
	Providers    providerRegistry
	RefreshTTL   time.Duration
	OAuthTimeout time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:        deps.Users,
		store:        deps.Store,
		tokens:       deps.Tokens,
		verifier:     deps.Verifier,
		hasher:       deps.Hasher,
		phones:       deps.Phones,
		providers:    deps.Providers,
		refreshTTL:   deps.RefreshTTL,
		oauthTimeout: deps.OAuthTimeout,
		now:          time.Now,
	}
}

func (s *service) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Matches(password, u.PasswordHash) {
		return nil, domain.ErrBadCredentials
	}
	return s.issue(ctx, u)
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.TokenPair, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	phone, err := s.phones.Normalize(req.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.verifier.RequireVerified(ctx, phone); err != nil {
		return nil, err
	}
	if err := s.ensureAbsent(s.users.FindByPhone(ctx, phone)); err != nil {
		return nil, errIfTaken(err, domain.ErrDuplicatePhone)
	}
	if err := s.ensureAbsent(s.users.FindByEmail(ctx, req.Email)); err != nil {
		return nil, errIfTaken(err, domain.ErrDuplicateEmail)
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: digest,
		Phone:        phone,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	if err := s.verifier.ConsumeVerified(ctx, phone); err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.Parse(refreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh: %w", domain.ErrUnauthenticated)
	}
	if claims.Kind != domain.TokenRefresh {
		return "", fmt.Errorf("refresh with %s token: %w", claims.Kind, domain.ErrUnauthenticated)
	}
	if err := s.checkBlacklist(ctx, refreshToken); err != nil {
		return "", err
	}
	current, ok, err := s.store.Get(ctx, domain.RefreshTokenKey(claims.Subject))
	if err != nil {
		return "", err
	}
	if !ok || current != refreshToken {
		return "", domain.ErrStaleToken
	}
	return s.tokens.Issue(claims.Subject, claims.Role, domain.TokenAccess)
}

func (s *service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil && !errors.Is(err, domain.ErrTokenExpired) {
		return fmt.Errorf("logout: %w", domain.ErrUnauthenticated)
	}
	if claims.Kind != domain.TokenAccess {
		return fmt.Errorf("logout with %s token: %w", claims.Kind, domain.ErrUnauthenticated)
	}
	// A logged-out token must not end a session opened after it.
	if err := s.checkBlacklist(ctx, accessToken); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, domain.RefreshTokenKey(claims.Subject)); err != nil {
		return err
	}
	remaining := claims.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	return s.store.Put(ctx, domain.BlacklistKey(accessToken), blacklistValue, remaining)
}

func (s *service) Authenticate(ctx context.Context, accessToken string) (*domain.TokenClaims, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", domain.ErrUnauthenticated)
	}
	if claims.Kind != domain.TokenAccess {
		return nil, fmt.Errorf("authenticate with %s token: %w", claims.Kind, domain.ErrUnauthenticated)
	}
	if err := s.checkBlacklist(ctx, accessToken); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *service) LinkSocial(ctx context.Context, phone, socialID, provider string) (*domain.TokenPair, error) {
	if socialID == "" {
		return nil, fmt.Errorf("social id is required: %w", domain.ErrBadRequest)
	}
	if _, err := s.providers.Get(provider); err != nil {
		return nil, err
	}
	phone, err := s.phones.Normalize(phone)
	if err != nil {
		return nil, err
	}
	if err := s.verifier.RequireVerified(ctx, phone); err != nil {
		return nil, err
	}

	owner, err := s.users.FindByPhone(ctx, phone)
	var target *domain.User
	switch {
	case err == nil:
		target, err = s.mergeInto(ctx, owner, socialID, provider)
	case errors.Is(err, domain.ErrUserNotFound):
		target, err = s.attachPhone(ctx, phone, socialID, provider)
	}
	if err != nil {
		return nil, err
	}

	if err := s.verifier.ConsumeVerified(ctx, phone); err != nil {
		return nil, err
	}
	return s.issue(ctx, target)
}

// mergeInto links the social identity to the phone owner. A separate record
// already holding that identity is removed first.
func (s *service) mergeInto(ctx context.Context, owner *domain.User, socialID, provider string) (*domain.User, error) {
	if owner.SocialID != "" && (owner.SocialID != socialID || owner.Provider != provider) {
		return nil, fmt.Errorf("owner already linked to %s: %w", owner.Provider, domain.ErrLinkConflict)
	}
	other, err := s.users.FindBySocialIDAndProvider(ctx, socialID, provider)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		other = nil
	case err != nil:
		return nil, err
	}
	if other != nil && other.UserID != owner.UserID {
		if other.Phone != "" && other.Phone != owner.Phone {
			return nil, fmt.Errorf("social account holds another phone: %w", domain.ErrLinkConflict)
		}
		if err := s.users.Delete(ctx, other); err != nil {
			return nil, err
		}
		if err := s.store.Delete(ctx, domain.RefreshTokenKey(other.Subject())); err != nil {
			return nil, err
		}
		slog.Info("merged social account", "removed_user_id", other.UserID, "into_user_id", owner.UserID)
	}

	owner.SocialID = socialID
	owner.Provider = provider
	owner.UpdatedAt = s.now().UTC()
	if err := s.users.Save(ctx, owner); err != nil {
		return nil, err
	}
	return owner, nil
}

// attachPhone stores phone on the social account when no user owns it yet.
func (s *service) attachPhone(ctx context.Context, phone, socialID, provider string) (*domain.User, error) {
	u, err := s.users.FindBySocialIDAndProvider(ctx, socialID, provider)
	if err != nil {
		return nil, err
	}
	if u.Phone != "" && u.Phone != phone {
		return nil, fmt.Errorf("social account holds another phone: %w", domain.ErrLinkConflict)
	}
	u.Phone = phone
	u.UpdatedAt = s.now().UTC()
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) SocialLogin(ctx context.Context, provider, code string) (*domain.SocialLoginResult, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required: %w", domain.ErrBadRequest)
	}
	p, err := s.providers.Get(provider)
	if err != nil {
		return nil, err
	}
	profile, err := s.fetchProfile(ctx, p, code)
	if err != nil {
		return nil, err
	}

	u, err := s.users.FindBySocialIDAndProvider(ctx, profile.ExternalID, provider)
	if errors.Is(err, domain.ErrUserNotFound) {
		u, err = s.createSocialUser(ctx, profile, provider)
		if errors.Is(err, domain.ErrLinkConflict) {
			// A concurrent first login created the account.
			u, err = s.users.FindBySocialIDAndProvider(ctx, profile.ExternalID, provider)
		}
	}
	if err != nil {
		return nil, err
	}

	if u.Phone == "" {
		return &domain.SocialLoginResult{
			PhoneRequired: true,
			SocialID:      u.SocialID,
			Provider:      provider,
		}, nil
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	return &domain.SocialLoginResult{Tokens: pair, SocialID: u.SocialID, Provider: provider}, nil
}

func (s *service) fetchProfile(ctx context.Context, p oauth.Provider, code string) (*domain.ExternalProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.oauthTimeout)
	defer cancel()

	credential, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, asExternal(err)
	}
	profile, err := p.FetchProfile(ctx, credential)
	if err != nil {
		return nil, asExternal(err)
	}
	if profile.ExternalID == "" {
		return nil, fmt.Errorf("%s profile without id: %w", p.Name(), domain.ErrExternalProvider)
	}
	return profile, nil
}

// createSocialUser registers a first-time social login. The profile email
// is dropped when another account already uses it.
func (s *service) createSocialUser(ctx context.Context, profile *domain.ExternalProfile, provider string) (*domain.User, error) {
	email := profile.Email
	if email != "" {
		if err := s.ensureAbsent(s.users.FindByEmail(ctx, email)); err != nil {
			if !errors.Is(err, errTaken) {
				return nil, err
			}
			email = ""
		}
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:    id.New(),
		Username:  provider + "_" + profile.ExternalID,
		Email:     email,
		SocialID:  profile.ExternalID,
		Provider:  provider,
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.users.Save(ctx, u)
	if errors.Is(err, domain.ErrDuplicateEmail) {
		u.Email = ""
		err = s.users.Save(ctx, u)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// issue mints a token pair for u and records the refresh token as the
// subject's only valid one.
func (s *service) issue(ctx context.Context, u *domain.User) (*domain.TokenPair, error) {
	pair, err := s.tokens.IssuePair(u.Subject(), u.Role)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, domain.RefreshTokenKey(u.Subject()), pair.RefreshToken, s.refreshTTL); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *service) checkBlacklist(ctx context.Context, token string) error {
	_, listed, err := s.store.Get(ctx, domain.BlacklistKey(token))
	if err != nil {
		return err
	}
	if listed {
		return domain.ErrRevoked
	}
	return nil
}

var errTaken = errors.New("already taken")

// ensureAbsent turns the result of a lookup into nil when nothing was found
// and errTaken when a record exists.
func (s *service) ensureAbsent(_ *domain.User, err error) error {
	switch {
	case err == nil:
		return errTaken
	case errors.Is(err, domain.ErrUserNotFound):
		return nil
	default:
		return err
	}
}

func errIfTaken(err, taken error) error {
	if errors.Is(err, errTaken) {
		return taken
	}
	return err
}

func asExternal(err error) error {
	if errors.Is(err, domain.ErrExternalProvider) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrExternalProvider, err)
}
