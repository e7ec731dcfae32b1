package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-api-auth/internal/domain"
)

// httpError maps a domain error to its HTTP status and writes it.
func httpError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "err", err)
	}
	writeError(w, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNoPendingCode),
		errors.Is(err, domain.ErrCodeMismatch):
		return http.StatusBadRequest, "verification code does not match or has expired"
	case errors.Is(err, domain.ErrAttemptsExceeded):
		return http.StatusTooManyRequests, "too many attempts, request a new code"
	case errors.Is(err, domain.ErrNotVerified):
		return http.StatusBadRequest, domain.ErrNotVerified.Error()
	case errors.Is(err, domain.ErrUnsupportedProvider):
		return http.StatusBadRequest, domain.ErrUnsupportedProvider.Error()
	case errors.Is(err, domain.ErrBadCredentials):
		return http.StatusUnauthorized, domain.ErrBadCredentials.Error()
	case errors.Is(err, domain.ErrRevoked):
		return http.StatusUnauthorized, domain.ErrRevoked.Error()
	case errors.Is(err, domain.ErrStaleToken):
		return http.StatusUnauthorized, domain.ErrStaleToken.Error()
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrMalformedToken),
		errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, "invalid or expired token"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, domain.ErrUserNotFound.Error()
	case errors.Is(err, domain.ErrDuplicatePhone):
		return http.StatusConflict, domain.ErrDuplicatePhone.Error()
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusConflict, domain.ErrDuplicateEmail.Error()
	case errors.Is(err, domain.ErrLinkConflict):
		return http.StatusConflict, domain.ErrLinkConflict.Error()
	case errors.Is(err, domain.ErrExternalProvider):
		return http.StatusBadGateway, domain.ErrExternalProvider.Error()
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, domain.ErrUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
