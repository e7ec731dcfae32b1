package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrDuplicatePhone      = errors.New("phone number already registered")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrBadCredentials      = errors.New("bad credentials")
	ErrUserNotFound        = errors.New("user not found")
	ErrNotVerified         = errors.New("phone number not verified")
	ErrNoPendingCode       = errors.New("no pending verification code")
	ErrCodeMismatch        = errors.New("verification code mismatch")
	ErrAttemptsExceeded    = errors.New("too many verification attempts")
	ErrMalformedToken      = errors.New("malformed token")
	ErrTokenExpired        = errors.New("token expired")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrRevoked             = errors.New("token revoked")
	ErrStaleToken          = errors.New("stale refresh token")
	ErrExternalProvider    = errors.New("external provider failure")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrLinkConflict        = errors.New("account link conflict")
	ErrBadRequest          = errors.New("bad request")
	ErrKeyNotFound         = errors.New("key not found")

	// ErrUnavailable wraps any storage-layer fault. The underlying cause is
	// logged by the adapter and never surfaced to clients.
	ErrUnavailable = errors.New("service unavailable")
)
