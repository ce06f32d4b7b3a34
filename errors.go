package warden

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/warden/accounts"
	"github.com/MrEthical07/warden/password"
	"github.com/MrEthical07/warden/rbac"
	"github.com/MrEthical07/warden/token"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown name and
	// for a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned by Login only after the password matched.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrForbidden is returned when the caller's role does not permit the action.
	ErrForbidden = errors.New("forbidden")
	// ErrLoginRateLimited is returned when the login throttle is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrUnavailable wraps a backend failure (Redis, revocation registry).
	ErrUnavailable = errors.New("service unavailable")
	// ErrInvalidRequest is returned for malformed operation input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEngineClosed is returned after Close.
	ErrEngineClosed = errors.New("engine closed")
)

// Re-exported sentinels so callers can match on one package.
var (
	ErrDuplicateAccount      = accounts.ErrDuplicateAccount
	ErrNotFound              = accounts.ErrNotFound
	ErrSelfModification      = accounts.ErrSelfModification
	ErrInvalidAccount        = accounts.ErrInvalidAccount
	ErrStoreUnavailable      = accounts.ErrUnavailable
	ErrWeakPassword          = password.ErrWeakPassword
	ErrInvalidRole           = rbac.ErrInvalidRole
	ErrMalformedToken        = token.ErrMalformedToken
	ErrExpiredToken          = token.ErrExpiredToken
	ErrRevokedToken          = token.ErrRevokedToken
	ErrRevocationUnavailable = token.ErrRevocationUnavailable
)

// StatusCode maps an engine error to the HTTP status a boundary layer should
// answer with. A nil error maps to 200.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrDuplicateAccount):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrRevokedToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSelfModification),
		errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrInvalidAccount),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrLoginRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrRevocationUnavailable),
		errors.Is(err, ErrEngineClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
