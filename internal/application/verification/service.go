package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/pkg/otp"
)

const verifiedValue = "true"

type Service interface {
	// SendCode issues a fresh code for phone, replacing any pending one.
	// Unless linking, a phone that already belongs to a user is rejected.
	SendCode(ctx context.Context, phone string, linking bool) error
	// CheckCode consumes the pending code and marks phone as verified.
	// Too many wrong codes discard the pending one.
	CheckCode(ctx context.Context, phone, code string) error
	RequireVerified(ctx context.Context, phone string) error
	ConsumeVerified(ctx context.Context, phone string) error
}

type kvStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	ConsumeIfEqual(ctx context.Context, key, missKey, expected string, maxMisses int) (bool, error)
}

type userFinder interface {
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
}

// CodeSender delivers a verification code to a phone number.
type CodeSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type phoneNormalizer interface {
	Normalize(raw string) (string, error)
}

type service struct {
	store       kvStore
	users       userFinder
	sender      CodeSender
	phones      phoneNormalizer
	codeTTL     time.Duration
	verifiedTTL time.Duration
	maxAttempts int
	generate    func() (string, error)
}

type ServiceDeps struct {
	Store       kvStore
	Users       userFinder
	Sender      CodeSender
	Phones      phoneNormalizer
	CodeTTL     time.Duration
	VerifiedTTL time.Duration
	// MaxAttempts is the number of wrong codes after which the pending code
	// is discarded. Zero means unlimited.
	MaxAttempts int
}

func NewService(deps ServiceDeps) Service {
	return &service{
		store:       deps.Store,
		users:       deps.Users,
		sender:      deps.Sender,
		phones:      deps.Phones,
		codeTTL:     deps.CodeTTL,
		verifiedTTL: deps.VerifiedTTL,
		maxAttempts: deps.MaxAttempts,
		generate:    otp.Generate,
	}
}

func (s *service) SendCode(ctx context.Context, phone string, linking bool) error {
	phone, err := s.phones.Normalize(phone)
	if err != nil {
		return err
	}
	if !linking {
		_, err := s.users.FindByPhone(ctx, phone)
		switch {
		case err == nil:
			return domain.ErrDuplicatePhone
		case !errors.Is(err, domain.ErrUserNotFound):
			return err
		}
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := s.store.Delete(ctx, domain.VerificationAttemptsKey(phone)); err != nil {
		return err
	}
	if err := s.store.Put(ctx, domain.VerificationCodeKey(phone), code, s.codeTTL); err != nil {
		return err
	}
	if err := s.sender.SendSMS(ctx, phone, codeMessage(code)); err != nil {
		slog.Warn("verification code delivery failed", "err", err)
		return fmt.Errorf("deliver code: %w", domain.ErrExternalProvider)
	}
	return nil
}

func (s *service) CheckCode(ctx context.Context, phone, code string) error {
	phone, err := s.phones.Normalize(phone)
	if err != nil {
		return err
	}
	ok, err := s.store.ConsumeIfEqual(ctx,
		domain.VerificationCodeKey(phone), domain.VerificationAttemptsKey(phone), code, s.maxAttempts)
	switch {
	case errors.Is(err, domain.ErrKeyNotFound):
		return domain.ErrNoPendingCode
	case errors.Is(err, domain.ErrAttemptsExceeded):
		slog.Warn("verification code discarded after repeated mismatches", "max_attempts", s.maxAttempts)
		return err
	case err != nil:
		return err
	case !ok:
		return domain.ErrCodeMismatch
	}
	return s.store.Put(ctx, domain.VerifiedFlagKey(phone), verifiedValue, s.verifiedTTL)
}

func (s *service) RequireVerified(ctx context.Context, phone string) error {
	phone, err := s.phones.Normalize(phone)
	if err != nil {
		return err
	}
	v, ok, err := s.store.Get(ctx, domain.VerifiedFlagKey(phone))
	if err != nil {
		return err
	}
	if !ok || v != verifiedValue {
		return domain.ErrNotVerified
	}
	return nil
}

func (s *service) ConsumeVerified(ctx context.Context, phone string) error {
	phone, err := s.phones.Normalize(phone)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, domain.VerifiedFlagKey(phone))
}

func codeMessage(code string) string {
	return "[auth] Your verification code is " + code
}
