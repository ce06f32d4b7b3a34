package warden

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/warden/accounts"
	internalaudit "github.com/MrEthical07/warden/internal/audit"
	"github.com/MrEthical07/warden/internal/rate"
	"github.com/MrEthical07/warden/password"
	"github.com/MrEthical07/warden/rbac"
	"github.com/MrEthical07/warden/revocation"
	"github.com/MrEthical07/warden/token"
)

// Engine is the credential and session authority. It is immutable after
// Build and safe for concurrent use.
type Engine struct {
	config    Config
	store     accounts.Store
	hasher    *password.Argon2
	dummyHash string
	tokens    *token.Authority
	registry  revocation.Registry
	limiter   *rate.Limiter
	audit     *internalaudit.Dispatcher
	sweeper   *revocation.Sweeper
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time

	closers   []io.Closer
	closed    atomic.Bool
	closeOnce sync.Once
}

// Close stops the revocation sweeper, flushes pending audit events and
// releases connections the engine opened itself. It is safe to call more
// than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.sweeper.Close()
		e.audit.Close()
		for i := len(e.closers) - 1; i >= 0; i-- {
			if err := e.closers[i].Close(); err != nil {
				e.logger.Warn("warden: close failed", "err", err)
			}
		}
	})
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Authenticate verifies raw and returns the caller's identity. The role is
// the one embedded when the token was issued. Revocation is checked on
// every call; if the registry cannot answer, Authenticate fails closed with
// ErrRevocationUnavailable.
func (e *Engine) Authenticate(ctx context.Context, raw string) (Identity, error) {
	if err := e.checkOpen(); err != nil {
		return Identity{}, err
	}
	start := time.Now()
	defer e.observe(MetricVerifyLatency, start)

	claims, err := e.tokens.Verify(ctx, bearerToken(raw))
	if err != nil {
		switch {
		case errors.Is(err, ErrRevokedToken):
			e.metrics.Inc(MetricVerifyRevoked)
		case errors.Is(err, ErrRevocationUnavailable):
			e.metrics.Inc(MetricBackendUnavailable)
			e.logger.Error("warden: revocation lookup failed", "err", err)
		default:
			e.metrics.Inc(MetricVerifyFailure)
			e.logger.Debug("warden: token rejected", "err", err)
		}
		return Identity{}, err
	}

	e.metrics.Inc(MetricVerifySuccess)
	return identityOf(claims), nil
}

// Authorize reports whether id may perform action. It returns nil or
// ErrForbidden and performs no I/O.
func (e *Engine) Authorize(id Identity, action Action) error {
	if id.AccountID == "" || !rbac.Authorize(id.Role, action) {
		e.metrics.Inc(MetricForbidden)
		return ErrForbidden
	}
	return nil
}

// require is Authorize plus an audit record on denial.
func (e *Engine) require(ctx context.Context, id Identity, action Action) error {
	if err := e.Authorize(id, action); err != nil {
		e.emitAudit(ctx, auditRecord{
			eventType: auditEventAuthorizationDeny,
			actorID:   id.AccountID,
			tokenID:   id.TokenID,
			err:       err,
			metadata: func() map[string]string {
				return map[string]string{"action": string(action), "role": string(id.Role)}
			},
		})
		return err
	}
	return nil
}

// revokeSubject writes a cutoff that revokes every token issued to
// accountID up to and including the current second. The entry lives as
// long as the longest token the authority may issue.
func (e *Engine) revokeSubject(ctx context.Context, accountID string) error {
	now := e.now()
	if err := e.registry.RevokeSubject(ctx, accountID, now, e.tokens.CutoffRetainUntil(now)); err != nil {
		e.metrics.Inc(MetricBackendUnavailable)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return nil
}

func identityOf(c token.Claims) Identity {
	return Identity{
		AccountID: c.Subject,
		Role:      c.Role,
		TokenID:   c.TokenID,
		IssuedAt:  c.IssuedAt,
		ExpiresAt: c.ExpiresAt,
	}
}

// bearerToken strips an optional "Bearer " prefix.
func bearerToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
