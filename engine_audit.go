package warden

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventRegisterSuccess    = "register_success"
	auditEventRegisterFailure    = "register_failure"
	auditEventLogout             = "logout"
	auditEventLogoutAll          = "logout_all"
	auditEventRoleChanged        = "role_changed"
	auditEventAccountStatus      = "account_status_change"
	auditEventAccountDeleted     = "account_deleted"
	auditEventAuthorizationDeny  = "authorization_denied"
	auditEventAdminActionFailure = "admin_action_failure"
)

// AuditErrorCode is the stable, non-sensitive reason recorded on failed
// audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnknownAccount     AuditErrorCode = "unknown_account"
	auditErrWrongPassword      AuditErrorCode = "wrong_password"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrWeakPassword       AuditErrorCode = "weak_password"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrSelfModification   AuditErrorCode = "self_modification"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// auditRecord carries the identifying fields of one event. Only ids go in;
// never passwords, hashes or raw tokens.
type auditRecord struct {
	eventType string
	accountID string
	actorID   string
	tokenID   string
	err       error
	code      AuditErrorCode // overrides the code derived from err
	metadata  func() map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, r auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if r.metadata != nil {
		metadata = r.metadata()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: r.eventType,
		AccountID: r.accountID,
		ActorID:   r.actorID,
		TokenID:   r.tokenID,
		IP:        ClientIPFromContext(ctx),
		Success:   r.err == nil && r.code == "",
		Metadata:  metadata,
	}
	code := r.code
	if code == "" {
		code = auditErrorCode(r.err)
	}
	event.Error = string(code)

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrDuplicateAccount):
		return auditErrDuplicate
	case errors.Is(err, ErrWeakPassword):
		return auditErrWeakPassword
	case errors.Is(err, ErrInvalidAccount),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidInput
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrSelfModification):
		return auditErrSelfModification
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrRevokedToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrRevocationUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(id, time.Since(start))
	}
}
