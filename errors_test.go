package warden

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrDuplicateAccount, http.StatusConflict},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrAccountDisabled, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrSelfModification, http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrMalformedToken, http.StatusUnauthorized},
		{ErrExpiredToken, http.StatusUnauthorized},
		{ErrRevokedToken, http.StatusUnauthorized},
		{ErrWeakPassword, http.StatusBadRequest},
		{ErrInvalidAccount, http.StatusBadRequest},
		{ErrInvalidRole, http.StatusBadRequest},
		{ErrLoginRateLimited, http.StatusTooManyRequests},
		{ErrUnavailable, http.StatusServiceUnavailable},
		{ErrStoreUnavailable, http.StatusServiceUnavailable},
		{ErrRevocationUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", ErrRevokedToken), http.StatusUnauthorized},
		{errors.Join(ErrInvalidAccount, ErrInvalidRole), http.StatusBadRequest},
		{context.Canceled, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAuditErrorCodeNeverEmptyOnFailure(t *testing.T) {
	for _, err := range []error{
		ErrInvalidCredentials, ErrAccountDisabled, ErrLoginRateLimited, ErrDuplicateAccount,
		ErrWeakPassword, ErrNotFound, ErrSelfModification, ErrForbidden, ErrRevokedToken,
		ErrStoreUnavailable, errors.New("other"),
	} {
		if auditErrorCode(err) == "" {
			t.Fatalf("empty audit code for %v", err)
		}
	}
	if auditErrorCode(nil) != "" {
		t.Fatal("nil error must have no code")
	}
}
