package warden

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/warden/accounts"
	"github.com/MrEthical07/warden/internal/rate"
)

// Login verifies name and plaintext and issues a session token.
//
// An unknown name and a wrong password both return ErrInvalidCredentials,
// and both pay one full password verification: unknown names are checked
// against a decoy hash built with the live work factor. ErrAccountDisabled
// is returned only after the password matched. If ctx is done by the time
// the password has been checked, no token is issued.
//
// The account is read again after the token is signed, so a disable or
// delete that commits while the password is being checked withholds the
// token. A change committing after that re-read is covered by the subject
// cutoff SetActive and DeleteAccount write once their store change lands.
func (e *Engine) Login(ctx context.Context, name, plaintext string) (TokenView, error) {
	if err := e.checkOpen(); err != nil {
		return TokenView{}, err
	}
	start := time.Now()
	defer e.observe(MetricLoginLatency, start)

	name = accounts.NormalizeName(name)
	ip := ClientIPFromContext(ctx)

	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, name, ip); err != nil {
			return TokenView{}, e.throttleError(ctx, err, "")
		}
	}

	acct, err := e.store.FindByName(ctx, name)
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		_, _ = e.hasher.Verify(plaintext, e.dummyHash)
		return TokenView{}, e.loginFailed(ctx, name, "", auditErrUnknownAccount)
	case err != nil:
		e.metrics.Inc(MetricBackendUnavailable)
		e.logger.Error("warden: account lookup failed", "err", err)
		return TokenView{}, err
	}

	ok, err := e.hasher.Verify(plaintext, acct.PasswordHash)
	if err != nil {
		e.logger.Error("warden: stored password hash unreadable", "account_id", acct.ID, "err", err)
		return TokenView{}, e.loginFailed(ctx, name, acct.ID, auditErrInternal)
	}
	if !ok {
		return TokenView{}, e.loginFailed(ctx, name, acct.ID, auditErrWrongPassword)
	}

	if !acct.Active {
		return TokenView{}, e.loginDisabled(ctx, acct.ID)
	}

	if err := ctx.Err(); err != nil {
		return TokenView{}, err
	}

	tok, err := e.tokens.Issue(acct.ID, acct.Role, e.config.Token.TTL)
	if err != nil {
		return TokenView{}, fmt.Errorf("issue token: %w", err)
	}

	current, err := e.store.FindByID(ctx, acct.ID)
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		return TokenView{}, e.loginFailed(ctx, name, acct.ID, auditErrUnknownAccount)
	case err != nil:
		e.metrics.Inc(MetricBackendUnavailable)
		e.logger.Error("warden: account recheck failed", "account_id", acct.ID, "err", err)
		return TokenView{}, err
	case !current.Active:
		return TokenView{}, e.loginDisabled(ctx, acct.ID)
	}

	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, name); err != nil {
			e.logger.Warn("warden: login throttle reset failed", "err", err)
		}
	}
	if e.config.Password.UpgradeOnLogin {
		e.upgradeHash(ctx, acct, plaintext)
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.metrics.Inc(MetricTokenIssued)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventLoginSuccess,
		accountID: acct.ID,
		tokenID:   tok.TokenID,
	})
	e.logger.Debug("warden: login", "account_id", acct.ID, "token_id", tok.TokenID)

	return TokenView{
		Token:     tok.Raw,
		Type:      TokenTypeBearer,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

func (e *Engine) loginDisabled(ctx context.Context, accountID string) error {
	e.metrics.Inc(MetricLoginDisabled)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventLoginFailure,
		accountID: accountID,
		err:       ErrAccountDisabled,
	})
	return ErrAccountDisabled
}

// loginFailed records a failed attempt and returns the error the caller
// sees. The audit reason distinguishes unknown names from wrong passwords;
// the returned error never does.
func (e *Engine) loginFailed(ctx context.Context, name, accountID string, reason AuditErrorCode) error {
	if e.limiter != nil {
		if err := e.limiter.IncrementLogin(ctx, name, ClientIPFromContext(ctx)); err != nil {
			return e.throttleError(ctx, err, accountID)
		}
	}

	e.metrics.Inc(MetricLoginFailure)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventLoginFailure,
		accountID: accountID,
		code:      reason,
	})
	return ErrInvalidCredentials
}

func (e *Engine) throttleError(ctx context.Context, err error, accountID string) error {
	if errors.Is(err, rate.ErrRateLimited) {
		e.metrics.Inc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditRecord{
			eventType: auditEventLoginRateLimited,
			accountID: accountID,
			err:       ErrLoginRateLimited,
		})
		return ErrLoginRateLimited
	}
	e.metrics.Inc(MetricBackendUnavailable)
	e.logger.Error("warden: login throttle unavailable", "err", err)
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// upgradeHash is best effort; a failure never fails the login.
func (e *Engine) upgradeHash(ctx context.Context, acct accounts.Account, plaintext string) {
	needs, err := e.hasher.NeedsUpgrade(acct.PasswordHash)
	if err != nil || !needs {
		return
	}
	upgraded, err := e.hasher.HashUnchecked(plaintext)
	if err != nil {
		e.logger.Warn("warden: password rehash failed", "account_id", acct.ID, "err", err)
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, acct.ID, upgraded); err != nil {
		e.logger.Warn("warden: password rehash not stored", "account_id", acct.ID, "err", err)
	}
}

// Logout revokes the token raw until its natural expiry. Logging out the
// same token again succeeds. A token that has already expired is accepted
// as a no-op; a malformed one fails with ErrMalformedToken.
func (e *Engine) Logout(ctx context.Context, raw string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	claims, err := e.tokens.Inspect(bearerToken(raw))
	if errors.Is(err, ErrExpiredToken) {
		return nil
	}
	if err != nil {
		e.metrics.Inc(MetricVerifyFailure)
		return err
	}
	if err := e.require(ctx, identityOf(claims), ActionLogout); err != nil {
		return err
	}

	if err := e.registry.Revoke(ctx, claims.TokenID, e.tokens.RetainUntil(claims.ExpiresAt)); err != nil {
		e.metrics.Inc(MetricBackendUnavailable)
		e.logger.Error("warden: revoke failed", "token_id", claims.TokenID, "err", err)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventLogout,
		accountID: claims.Subject,
		tokenID:   claims.TokenID,
	})
	return nil
}

// LogoutAll revokes every token issued to the caller up to now.
func (e *Engine) LogoutAll(ctx context.Context, id Identity) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.require(ctx, id, ActionLogoutAll); err != nil {
		return err
	}

	if err := e.revokeSubject(ctx, id.AccountID); err != nil {
		return err
	}

	e.metrics.Inc(MetricLogoutAll)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventLogoutAll,
		accountID: id.AccountID,
		actorID:   id.AccountID,
		tokenID:   id.TokenID,
	})
	return nil
}
