package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-api-auth/internal/application/identity"
	"github.com/go-api-auth/internal/application/session"
	"github.com/go-api-auth/internal/application/user"
	"github.com/go-api-auth/internal/application/verification"
	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-api-auth/internal/infrastructure/jwt"
	"github.com/go-api-auth/internal/infrastructure/oauth"
	redisinfra "github.com/go-api-auth/internal/infrastructure/redis"
	"github.com/go-api-auth/internal/infrastructure/sns"
	"github.com/go-api-auth/internal/pkg/logger"
	"github.com/go-api-auth/internal/pkg/password"
	"github.com/go-api-auth/internal/pkg/phone"
	transporthttp "github.com/go-api-auth/internal/transport/http"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New("go-api-auth", cfg.AppEnv, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	redisClient, err := redisinfra.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()
	store := redisinfra.NewStore(redisClient)

	// Creates the users and guard tables if they don't exist.
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dynamo client: %w", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.UsersTable, cfg.UserKeysTable)
	users := dynamo.NewUserRepo(dynamoClient, cfg.UsersTable, cfg.UserKeysTable)

	smsSender, err := sns.NewSender(ctx, cfg)
	if err != nil {
		return fmt.Errorf("sms sender: %w", err)
	}

	tokens, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	var providers []oauth.Provider
	if cfg.Kakao.Enabled() {
		providers = append(providers, oauth.NewKakao(cfg.Kakao, cfg.OAuthTimeout))
	}
	if cfg.Google.Enabled() {
		providers = append(providers, oauth.NewGoogle(cfg.Google, cfg.OAuthTimeout))
	}
	registry := oauth.NewRegistry(providers...)
	log.Info("social providers configured", "providers", registry.Names())

	phones := phone.NewNormalizer(cfg.DefaultPhoneRegion)

	verifySvc := verification.NewService(verification.ServiceDeps{
		Store:       store,
		Users:       users,
		Sender:      smsSender,
		Phones:      phones,
		CodeTTL:     cfg.VerificationCodeTTL,
		VerifiedTTL: cfg.VerifiedFlagTTL,
		MaxAttempts: cfg.VerificationMaxAttempts,
	})

	deps := &transporthttp.Deps{
		Sessions: session.NewService(session.ServiceDeps{
			Users:        users,
			Store:        store,
			Tokens:       tokens,
			Verifier:     verifySvc,
			Hasher:       password.NewBcrypt(bcrypt.DefaultCost),
			Phones:       phones,
			Providers:    registry,
			RefreshTTL:   cfg.RefreshTokenTTL,
			OAuthTimeout: cfg.OAuthTimeout,
		}),
		Verification: verifySvc,
		Identity: identity.NewService(identity.ServiceDeps{
			Users:     users,
			Providers: registry.Names(),
		}),
		Users:       user.NewService(user.ServiceDeps{UserRepo: users}),
		Healthcheck: redisinfra.Healthcheck(redisClient),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
