package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-api-auth/internal/application/identity"
	"github.com/go-api-auth/internal/application/verification"
	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/domain"
	jwtinfra "github.com/go-api-auth/internal/infrastructure/jwt"
	"github.com/go-api-auth/internal/infrastructure/oauth"
	redisinfra "github.com/go-api-auth/internal/infrastructure/redis"
	"github.com/go-api-auth/internal/pkg/password"
	"github.com/go-api-auth/internal/pkg/phone"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	alicePhone = "010-1234-5678"
	aliceE164  = "+821012345678"
	bobPhone   = "010-9876-5432"
	bobE164    = "+821098765432"
	kakaoID    = "4213377001"
)

type fixture struct {
	svc      *service
	mr       *miniredis.Miniredis
	users    *memUsers
	verifier verification.Service
	identity identity.Service
	tokens   *jwtinfra.Provider
	kakao    *fakeProvider
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithAccessTTL(t, 30*time.Minute)
}

func newFixtureWithAccessTTL(t *testing.T, accessTTL time.Duration) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
	tokens, err := jwtinfra.NewProvider(cfg)
	require.NoError(t, err)

	store := redisinfra.NewStore(client)
	users := newMemUsers()
	phones := phone.NewNormalizer("KR")
	verifier := verification.NewService(verification.ServiceDeps{
		Store:       store,
		Users:       users,
		Sender:      discardSender{},
		Phones:      phones,
		CodeTTL:     3 * time.Minute,
		VerifiedTTL: 5 * time.Minute,
	})
	kakao := &fakeProvider{
		name:    domain.ProviderKakao,
		profile: domain.ExternalProfile{ExternalID: kakaoID, Email: "kakao-user@example.com"},
	}
	registry := oauth.NewRegistry(kakao)

	svc := NewService(ServiceDeps{
		Users:        users,
		Store:        store,
		Tokens:       tokens,
		Verifier:     verifier,
		Hasher:       password.NewBcrypt(bcrypt.MinCost),
		Phones:       phones,
		Providers:    registry,
		RefreshTTL:   cfg.RefreshTokenTTL,
		OAuthTimeout: 200 * time.Millisecond,
	}).(*service)

	return &fixture{
		svc:      svc,
		mr:       mr,
		users:    users,
		verifier: verifier,
		identity: identity.NewService(identity.ServiceDeps{Users: users, Providers: registry.Names()}),
		tokens:   tokens,
		kakao:    kakao,
	}
}

// verify runs the code flow so that phone carries a verified flag.
func (f *fixture) verify(t *testing.T, raw string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.verifier.SendCode(ctx, raw, true))
	e164, err := phone.NewNormalizer("KR").Normalize(raw)
	require.NoError(t, err)
	code, err := f.mr.Get("SMS:" + e164)
	require.NoError(t, err)
	require.NoError(t, f.verifier.CheckCode(ctx, raw, code))
}

func (f *fixture) signup(t *testing.T, username, email, raw string) *domain.TokenPair {
	t.Helper()
	f.verify(t, raw)
	pair, err := f.svc.Signup(context.Background(), domain.SignupRequest{
		Username: username,
		Email:    email,
		Password: "correct-horse",
		Phone:    raw,
	})
	require.NoError(t, err)
	return pair
}

func (f *fixture) storedRefresh(t *testing.T, subject string) string {
	t.Helper()
	v, err := f.mr.Get("RT:" + subject)
	require.NoError(t, err)
	return v
}

// --- Signup ---

func TestSignup_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair := f.signup(t, "alice", "alice@example.com", alicePhone)

	claims, err := f.tokens.Parse(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.Equal(t, pair.RefreshToken, f.storedRefresh(t, "alice@example.com"))
	assert.Equal(t, 7*24*time.Hour, f.mr.TTL("RT:alice@example.com"))

	u, err := f.identity.Resolve(ctx, claims.Subject)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, aliceE164, u.Phone)
	assert.NotEqual(t, "correct-horse", u.PasswordHash)
	assert.NotEmpty(t, u.UserID)

	// The verified flag is spent.
	assert.False(t, f.mr.Exists("SMS_VERIFIED:"+aliceE164))
}

func TestSignup_RequiresVerifiedPhone(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Signup(context.Background(), domain.SignupRequest{
		Username: "alice", Email: "alice@example.com", Password: "correct-horse", Phone: alicePhone,
	})

	assert.True(t, errors.Is(err, domain.ErrNotVerified))
	assert.Zero(t, f.users.count())
}

func TestSignup_DuplicatePhone(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "alice", "alice@example.com", alicePhone)
	f.verify(t, alicePhone)

	_, err := f.svc.Signup(context.Background(), domain.SignupRequest{
		Username: "mallory", Email: "mallory@example.com", Password: "correct-horse", Phone: alicePhone,
	})

	assert.True(t, errors.Is(err, domain.ErrDuplicatePhone))
	assert.Equal(t, 1, f.users.count())
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "alice", "alice@example.com", alicePhone)
	f.verify(t, bobPhone)

	_, err := f.svc.Signup(context.Background(), domain.SignupRequest{
		Username: "bob", Email: "alice@example.com", Password: "correct-horse", Phone: bobPhone,
	})

	assert.True(t, errors.Is(err, domain.ErrDuplicateEmail))
	// A failed signup leaves the flag for a retry.
	assert.True(t, f.mr.Exists("SMS_VERIFIED:"+bobE164))
}

func TestSignup_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Signup(context.Background(), domain.SignupRequest{
		Username: "alice", Email: "not-an-email", Password: "short", Phone: alicePhone,
	})

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- Login ---

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "alice", "alice@example.com", alicePhone)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "nobody@example.com", "correct-horse")
	assert.True(t, errors.Is(err, domain.ErrUserNotFound))

	_, err = f.svc.Login(ctx, "alice@example.com", "wrong-password")
	assert.True(t, errors.Is(err, domain.ErrBadCredentials))

	pair, err := f.svc.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, f.storedRefresh(t, "alice@example.com"))
}

func TestLogin_AccountWithoutPassword(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.Save(context.Background(), &domain.User{
		UserID: "u1", Email: "social@example.com", SocialID: "1", Provider: domain.ProviderKakao, Role: domain.RoleUser,
	}))

	_, err := f.svc.Login(context.Background(), "social@example.com", "")
	assert.True(t, errors.Is(err, domain.ErrBadCredentials))
}

// --- Refresh ---

func TestRefresh_LatestTokenSupersedesEarlier(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "alice", "alice@example.com", alicePhone)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrStaleToken))

	access, err := f.svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	claims, err := f.svc.Authenticate(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, domain.TokenAccess, claims.Kind)
}

func TestRefresh_RejectsNonRefreshTokens(t *testing.T) {
	f := newFixture(t)
	pair := f.signup(t, "alice", "alice@example.com", alicePhone)
	ctx := context.Background()

	_, err := f.svc.Refresh(ctx, pair.AccessToken)
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))

	_, err = f.svc.Refresh(ctx, "garbage")
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
}

func TestRefresh_RevokedToken(t *testing.T) {
	f := newFixture(t)
	pair := f.signup(t, "alice", "alice@example.com", alicePhone)
	f.mr.Set("BL:"+pair.RefreshToken, "logout")

	_, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrRevoked))
}

// --- Logout / Authenticate ---

func TestLogout_BlacklistsOnlyThatToken(t *testing.T) {
	f := newFixture(t)
	alice := f.signup(t, "alice", "alice@example.com", alicePhone)
	bob := f.signup(t, "bob", "bob@example.com", bobPhone)
	ctx := context.Background()

	require.NoError(t, f.svc.Logout(ctx, alice.AccessToken))

	ttl := f.mr.TTL("BL:" + alice.AccessToken)
	assert.Greater(t, ttl, 29*time.Minute)
	assert.LessOrEqual(t, ttl, 30*time.Minute)
	assert.False(t, f.mr.Exists("RT:alice@example.com"))

	_, err := f.svc.Authenticate(ctx, alice.AccessToken)
	assert.True(t, errors.Is(err, domain.ErrRevoked))
	_, err = f.svc.Refresh(ctx, alice.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrStaleToken))

	_, err = f.svc.Authenticate(ctx, bob.AccessToken)
	assert.NoError(t, err)

	again, err := f.svc.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, again.AccessToken)
	assert.NoError(t, err)
}

func TestLogout_ReplayedTokenLeavesNewSessionAlone(t *testing.T) {
	f := newFixture(t)
	old := f.signup(t, "alice", "alice@example.com", alicePhone)
	ctx := context.Background()
	require.NoError(t, f.svc.Logout(ctx, old.AccessToken))

	fresh, err := f.svc.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	err = f.svc.Logout(ctx, old.AccessToken)
	assert.True(t, errors.Is(err, domain.ErrRevoked))

	assert.Equal(t, fresh.RefreshToken, f.storedRefresh(t, "alice@example.com"))
	_, err = f.svc.Refresh(ctx, fresh.RefreshToken)
	assert.NoError(t, err)
}

func TestLogout_BlacklistEntryExpiresWithToken(t *testing.T) {
	f := newFixture(t)
	pair := f.signup(t, "alice", "alice@example.com", alicePhone)
	require.NoError(t, f.svc.Logout(context.Background(), pair.AccessToken))

	f.mr.FastForward(30 * time.Minute)
	assert.False(t, f.mr.Exists("BL:"+pair.AccessToken))
}

func TestLogout_ExpiredTokenIsNotBlacklisted(t *testing.T) {
	f := newFixtureWithAccessTTL(t, time.Nanosecond)
	pair := f.signup(t, "alice", "alice@example.com", alicePhone)

	require.NoError(t, f.svc.Logout(context.Background(), pair.AccessToken))

	assert.False(t, f.mr.Exists("BL:"+pair.AccessToken))
	assert.False(t, f.mr.Exists("RT:alice@example.com"))
}

func TestLogout_Malformed(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Logout(context.Background(), "garbage")
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
}

func TestAuthenticate_RejectsRefreshToken(t *testing.T) {
	f := newFixture(t)
	pair := f.signup(t, "alice", "alice@example.com", alicePhone)

	_, err := f.svc.Authenticate(context.Background(), pair.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	f := newFixtureWithAccessTTL(t, time.Nanosecond)
	pair := f.signup(t, "alice", "alice@example.com", alicePhone)

	_, err := f.svc.Authenticate(context.Background(), pair.AccessToken)
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
}

// --- SocialLogin ---

func TestSocialLogin_FirstTimeRequiresPhone(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SocialLogin(context.Background(), domain.ProviderKakao, "auth-code")

	require.NoError(t, err)
	assert.True(t, res.PhoneRequired)
	assert.Nil(t, res.Tokens)
	assert.Equal(t, kakaoID, res.SocialID)
	assert.Equal(t, domain.ProviderKakao, res.Provider)

	u, err := f.users.FindBySocialIDAndProvider(context.Background(), kakaoID, domain.ProviderKakao)
	require.NoError(t, err)
	assert.Equal(t, "kakao-user@example.com", u.Email)
	assert.Empty(t, u.Phone)
}

func TestSocialLogin_DropsEmailOwnedByAnotherAccount(t *testing.T) {
	f := newFixture(t)
	f.kakao.profile.Email = "alice@example.com"
	f.signup(t, "alice", "alice@example.com", alicePhone)

	_, err := f.svc.SocialLogin(context.Background(), domain.ProviderKakao, "auth-code")
	require.NoError(t, err)

	u, err := f.users.FindBySocialIDAndProvider(context.Background(), kakaoID, domain.ProviderKakao)
	require.NoError(t, err)
	assert.Empty(t, u.Email)
}

func TestSocialLogin_KnownUserWithPhoneGetsTokens(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.Save(context.Background(), &domain.User{
		UserID: "u1", SocialID: kakaoID, Provider: domain.ProviderKakao, Phone: aliceE164, Role: domain.RoleUser,
	}))

	res, err := f.svc.SocialLogin(context.Background(), domain.ProviderKakao, "auth-code")

	require.NoError(t, err)
	assert.False(t, res.PhoneRequired)
	require.NotNil(t, res.Tokens)
	assert.Equal(t, res.Tokens.RefreshToken, f.storedRefresh(t, "kakao:"+kakaoID))
	assert.Equal(t, 1, f.users.count())
}

func TestSocialLogin_SameIDAcrossProvidersStaysSeparate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.kakao.profile.Email = ""
	google := &fakeProvider{name: domain.ProviderGoogle, profile: domain.ExternalProfile{ExternalID: kakaoID}}
	registry := oauth.NewRegistry(f.kakao, google)
	f.svc.providers = registry
	resolver := identity.NewService(identity.ServiceDeps{Users: f.users, Providers: registry.Names()})

	require.NoError(t, f.users.Save(ctx, &domain.User{
		UserID: "u-kakao", SocialID: kakaoID, Provider: domain.ProviderKakao, Phone: aliceE164, Role: domain.RoleUser,
	}))
	require.NoError(t, f.users.Save(ctx, &domain.User{
		UserID: "u-google", SocialID: kakaoID, Provider: domain.ProviderGoogle, Phone: bobE164, Role: domain.RoleUser,
	}))

	kres, err := f.svc.SocialLogin(ctx, domain.ProviderKakao, "auth-code")
	require.NoError(t, err)
	gres, err := f.svc.SocialLogin(ctx, domain.ProviderGoogle, "auth-code")
	require.NoError(t, err)

	assert.Equal(t, kres.Tokens.RefreshToken, f.storedRefresh(t, "kakao:"+kakaoID))
	assert.Equal(t, gres.Tokens.RefreshToken, f.storedRefresh(t, "google:"+kakaoID))

	for res, want := range map[*domain.SocialLoginResult]string{kres: "u-kakao", gres: "u-google"} {
		claims, err := f.svc.Authenticate(ctx, res.Tokens.AccessToken)
		require.NoError(t, err)
		u, err := resolver.Resolve(ctx, claims.Subject)
		require.NoError(t, err)
		assert.Equal(t, want, u.UserID)
	}
}

func TestSocialLogin_ConcurrentFirstLoginReusesWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.Save(ctx, &domain.User{
		UserID: "u-winner", SocialID: kakaoID, Provider: domain.ProviderKakao, Phone: aliceE164, Role: domain.RoleUser,
	}))
	f.svc.users = &staleSocialUsers{memUsers: f.users, misses: 1}

	res, err := f.svc.SocialLogin(ctx, domain.ProviderKakao, "auth-code")

	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	assert.Equal(t, 1, f.users.count())
	assert.Equal(t, res.Tokens.RefreshToken, f.storedRefresh(t, "kakao:"+kakaoID))
}

func TestSocialLogin_UnsupportedProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SocialLogin(context.Background(), "myspace", "auth-code")
	assert.True(t, errors.Is(err, domain.ErrUnsupportedProvider))
}

func TestSocialLogin_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.kakao.err = errors.New("invalid_grant")

	_, err := f.svc.SocialLogin(context.Background(), domain.ProviderKakao, "auth-code")
	assert.True(t, errors.Is(err, domain.ErrExternalProvider))
	assert.Zero(t, f.users.count())
}

func TestSocialLogin_ProviderTimeout(t *testing.T) {
	f := newFixture(t)
	f.kakao.delay = time.Second

	_, err := f.svc.SocialLogin(context.Background(), domain.ProviderKakao, "auth-code")
	assert.True(t, errors.Is(err, domain.ErrExternalProvider))
}

// --- LinkSocial ---

func TestLinkSocial_RequiresVerifiedPhone(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.LinkSocial(context.Background(), alicePhone, kakaoID, domain.ProviderKakao)
	assert.True(t, errors.Is(err, domain.ErrNotVerified))
}

func TestLinkSocial_AttachesPhoneToSocialAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.SocialLogin(ctx, domain.ProviderKakao, "auth-code")
	require.NoError(t, err)
	require.True(t, res.PhoneRequired)

	f.verify(t, alicePhone)
	pair, err := f.svc.LinkSocial(ctx, alicePhone, res.SocialID, res.Provider)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.False(t, f.mr.Exists("SMS_VERIFIED:"+aliceE164))

	u, err := f.users.FindByPhone(ctx, aliceE164)
	require.NoError(t, err)
	assert.Equal(t, kakaoID, u.SocialID)

	again, err := f.svc.SocialLogin(ctx, domain.ProviderKakao, "auth-code")
	require.NoError(t, err)
	assert.False(t, again.PhoneRequired)
	assert.NotNil(t, again.Tokens)
}

func TestLinkSocial_UnknownSocialAccount(t *testing.T) {
	f := newFixture(t)
	f.verify(t, alicePhone)

	_, err := f.svc.LinkSocial(context.Background(), alicePhone, kakaoID, domain.ProviderKakao)
	assert.True(t, errors.Is(err, domain.ErrUserNotFound))
	assert.True(t, f.mr.Exists("SMS_VERIFIED:"+aliceE164))
}

func TestLinkSocial_MergesIntoPhoneOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice", "alice@example.com", alicePhone)
	_, err := f.svc.SocialLogin(ctx, domain.ProviderKakao, "auth-code")
	require.NoError(t, err)
	f.mr.Set("RT:kakao-user@example.com", "stale")
	require.Equal(t, 2, f.users.count())

	f.verify(t, alicePhone)
	pair, err := f.svc.LinkSocial(ctx, alicePhone, kakaoID, domain.ProviderKakao)
	require.NoError(t, err)

	assert.Equal(t, 1, f.users.count())
	assert.False(t, f.mr.Exists("RT:kakao-user@example.com"))
	u, err := f.users.FindBySocialIDAndProvider(ctx, kakaoID, domain.ProviderKakao)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, aliceE164, u.Phone)

	claims, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
}

func TestLinkSocial_OwnerLinkedElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.Save(ctx, &domain.User{
		UserID: "u1", Email: "alice@example.com", Phone: aliceE164,
		SocialID: "999", Provider: domain.ProviderKakao, Role: domain.RoleUser,
	}))
	f.verify(t, alicePhone)

	_, err := f.svc.LinkSocial(ctx, alicePhone, kakaoID, domain.ProviderKakao)

	assert.True(t, errors.Is(err, domain.ErrLinkConflict))
	assert.True(t, f.mr.Exists("SMS_VERIFIED:"+aliceE164))
}

func TestLinkSocial_SocialAccountHoldsOtherPhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice", "alice@example.com", alicePhone)
	require.NoError(t, f.users.Save(ctx, &domain.User{
		UserID: "u2", SocialID: kakaoID, Provider: domain.ProviderKakao, Phone: bobE164, Role: domain.RoleUser,
	}))
	f.verify(t, alicePhone)

	_, err := f.svc.LinkSocial(ctx, alicePhone, kakaoID, domain.ProviderKakao)

	assert.True(t, errors.Is(err, domain.ErrLinkConflict))
	assert.Equal(t, 2, f.users.count())
}

func TestLinkSocial_UnsupportedProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.LinkSocial(context.Background(), alicePhone, kakaoID, "myspace")
	assert.True(t, errors.Is(err, domain.ErrUnsupportedProvider))
}
