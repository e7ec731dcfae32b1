package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"3000"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`

	JWTSecret       string        `env:"JWT_SECRET,required"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	VerificationCodeTTL time.Duration `env:"VERIFICATION_CODE_TTL" envDefault:"3m"`
	VerifiedFlagTTL     time.Duration `env:"VERIFIED_FLAG_TTL" envDefault:"5m"`
	DefaultPhoneRegion  string        `env:"DEFAULT_PHONE_REGION" envDefault:"KR"`

	// VerificationMaxAttempts is how many wrong codes invalidate a pending one.
	VerificationMaxAttempts int `env:"VERIFICATION_MAX_ATTEMPTS" envDefault:"5"`

	Redis Redis

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	UsersTable     string `env:"DYNAMO_TABLE_USERS" envDefault:"users"`
	UserKeysTable  string `env:"DYNAMO_TABLE_USER_KEYS" envDefault:"user_keys"`
	SNSRegion      string `env:"SNS_REGION" envDefault:"us-east-1"`
	SNSEnabled     bool   `env:"SNS_ENABLED" envDefault:"false"`

	Kakao        OAuthClient   `envPrefix:"KAKAO_"`
	Google       OAuthClient   `envPrefix:"GOOGLE_"`
	OAuthTimeout time.Duration `env:"OAUTH_TIMEOUT" envDefault:"10s"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	CookieSecure   bool     `env:"COOKIE_SECURE" envDefault:"false"`

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-Ip.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`
}

// Redis holds the key-value store connection settings.
type Redis struct {
	URL            string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"15s"`
}

// OAuthClient is the client registration for one social identity provider.
// A provider with an empty ClientID is not registered.
type OAuthClient struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// Enabled reports whether the provider has been configured.
func (c OAuthClient) Enabled() bool {
	return c.ClientID != ""
}

// minSecretLen is the minimum HS256 key size in bytes.
const minSecretLen = 32

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < minSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLen)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.VerificationCodeTTL <= 0 || c.VerifiedFlagTTL <= 0 {
		return errors.New("verification TTLs must be positive")
	}
	if c.VerificationMaxAttempts < 1 {
		return errors.New("VERIFICATION_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}
