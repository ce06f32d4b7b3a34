package warden

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/MrEthical07/warden/accounts"
)

// Register creates a member account. The password is checked against the
// configured policy before it is hashed; ErrWeakPassword lists nothing
// about the plaintext itself.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (AccountView, error) {
	if err := e.checkOpen(); err != nil {
		return AccountView{}, err
	}

	fail := func(err error) (AccountView, error) {
		if errors.Is(err, ErrDuplicateAccount) {
			e.metrics.Inc(MetricRegisterDuplicate)
		} else {
			e.metrics.Inc(MetricRegisterRejected)
		}
		e.emitAudit(ctx, auditRecord{eventType: auditEventRegisterFailure, err: err})
		return AccountView{}, err
	}

	if accounts.NormalizeName(req.Name) == "" || accounts.NormalizeEmail(req.Email) == "" {
		return fail(ErrInvalidAccount)
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return fail(err)
	}

	acct, err := e.store.Create(ctx, accounts.NewAccount{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         RoleMember,
	})
	if err != nil {
		return fail(err)
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditRecord{eventType: auditEventRegisterSuccess, accountID: acct.ID})
	return viewOf(acct), nil
}

// CurrentAccount loads the caller's own account.
func (e *Engine) CurrentAccount(ctx context.Context, id Identity) (AccountView, error) {
	if err := e.checkOpen(); err != nil {
		return AccountView{}, err
	}
	if err := e.require(ctx, id, ActionViewSelf); err != nil {
		return AccountView{}, err
	}

	acct, err := e.store.FindByID(ctx, id.AccountID)
	if err != nil {
		return AccountView{}, err
	}
	return viewOf(acct), nil
}

// ListAccounts returns every account, oldest first. Admin only.
func (e *Engine) ListAccounts(ctx context.Context, id Identity) ([]AccountView, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := e.require(ctx, id, ActionListAccounts); err != nil {
		return nil, err
	}

	list, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AccountView, 0, len(list))
	for _, a := range list {
		out = append(out, viewOf(a))
	}
	return out, nil
}

// SetRole changes targetID's role. Admin only, and never on the caller's
// own account. Tokens already issued to the target keep the role they were
// issued with until they expire or are revoked.
func (e *Engine) SetRole(ctx context.Context, id Identity, targetID string, role Role) (AccountView, error) {
	if err := e.checkOpen(); err != nil {
		return AccountView{}, err
	}
	if err := e.require(ctx, id, ActionChangeRole); err != nil {
		return AccountView{}, err
	}

	acct, err := e.store.UpdateRole(ctx, id.AccountID, targetID, role)
	if err != nil {
		return AccountView{}, e.adminFailed(ctx, id, targetID, ActionChangeRole, err)
	}

	e.metrics.Inc(MetricRoleChanged)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventRoleChanged,
		accountID: acct.ID,
		actorID:   id.AccountID,
		metadata: func() map[string]string {
			return map[string]string{"role": string(acct.Role)}
		},
	})
	return viewOf(acct), nil
}

// SetActive enables or disables targetID. Admin only, never on the caller's
// own account. Disabling also revokes every token the target holds: the
// subject cutoff is written before the store change, so a failed revocation
// leaves the account untouched.
func (e *Engine) SetActive(ctx context.Context, id Identity, targetID string, active bool) (AccountView, error) {
	if err := e.checkOpen(); err != nil {
		return AccountView{}, err
	}
	if err := e.require(ctx, id, ActionChangeStatus); err != nil {
		return AccountView{}, err
	}
	targetID = strings.TrimSpace(targetID)

	if !active {
		if err := e.revokeBeforeChange(ctx, id, targetID, ActionChangeStatus); err != nil {
			return AccountView{}, err
		}
	}

	acct, err := e.store.SetActive(ctx, id.AccountID, targetID, active)
	if err != nil {
		return AccountView{}, e.adminFailed(ctx, id, targetID, ActionChangeStatus, err)
	}
	if !active {
		e.revokeAfterChange(ctx, acct.ID)
		e.metrics.Inc(MetricAccountDisabled)
	} else {
		e.metrics.Inc(MetricAccountEnabled)
	}

	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAccountStatus,
		accountID: acct.ID,
		actorID:   id.AccountID,
		metadata: func() map[string]string {
			return map[string]string{"active": strconv.FormatBool(active)}
		},
	})
	return viewOf(acct), nil
}

// DeleteAccount removes targetID and revokes every token it holds. Admin
// only, never on the caller's own account. As with SetActive, the cutoff
// is written first.
func (e *Engine) DeleteAccount(ctx context.Context, id Identity, targetID string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.require(ctx, id, ActionDeleteAccount); err != nil {
		return err
	}
	targetID = strings.TrimSpace(targetID)

	if err := e.revokeBeforeChange(ctx, id, targetID, ActionDeleteAccount); err != nil {
		return err
	}
	if err := e.store.Delete(ctx, id.AccountID, targetID); err != nil {
		return e.adminFailed(ctx, id, targetID, ActionDeleteAccount, err)
	}
	e.revokeAfterChange(ctx, targetID)

	e.metrics.Inc(MetricAccountDeleted)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAccountDeleted,
		accountID: targetID,
		actorID:   id.AccountID,
	})
	return nil
}

// revokeBeforeChange writes the target's subject cutoff ahead of a disable
// or delete. A cutoff left behind by a store change that then fails only
// forces the target to log in again.
func (e *Engine) revokeBeforeChange(ctx context.Context, id Identity, targetID string, action Action) error {
	if err := accounts.GuardSelf(id.AccountID, targetID); err != nil {
		return e.adminFailed(ctx, id, targetID, action, err)
	}
	if err := e.revokeSubject(ctx, targetID); err != nil {
		e.logger.Error("warden: account tokens not revoked", "account_id", targetID, "action", string(action), "err", err)
		return e.adminFailed(ctx, id, targetID, action, err)
	}
	return nil
}

// revokeAfterChange moves the cutoff up to cover tokens issued by logins
// that raced the store change. The change has committed, so a failure is
// logged rather than returned.
func (e *Engine) revokeAfterChange(ctx context.Context, accountID string) {
	if err := e.revokeSubject(ctx, accountID); err != nil {
		e.logger.Warn("warden: post-change token revocation failed", "account_id", accountID, "err", err)
	}
}

func (e *Engine) adminFailed(ctx context.Context, id Identity, targetID string, action Action, err error) error {
	if errors.Is(err, ErrSelfModification) {
		e.metrics.Inc(MetricSelfModificationRejected)
	}
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventAdminActionFailure,
		accountID: targetID,
		actorID:   id.AccountID,
		err:       err,
		metadata: func() map[string]string {
			return map[string]string{"action": string(action)}
		},
	})
	return err
}
