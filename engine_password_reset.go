package authcore

import (
	"context"
	"errors"
)

// ForgotPassword sends a password-reset code. Unknown identities get the
// same receipt and nothing is sent.
func (e *Engine) ForgotPassword(ctx context.Context, identity string) (Receipt, error) {
	if err := e.ready(); err != nil {
		return Receipt{}, err
	}
	identity, err := validIdentity(identity)
	if err != nil {
		return Receipt{}, err
	}
	if err := e.throttleIssue(ctx, identity, PurposePasswordReset); err != nil {
		return Receipt{}, err
	}
	acct, found, err := e.lookup(ctx, identity)
	if err != nil {
		return Receipt{}, err
	}
	if !found {
		return uniformReceipt(), nil
	}
	return e.issueAndSend(ctx, acct, identity, PurposePasswordReset)
}

// ResetPassword consumes a password-reset code, stores the new password and
// clears any lockout. The password is checked against policy before the code
// is spent.
func (e *Engine) ResetPassword(ctx context.Context, identity, code, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	identity, err := validIdentity(identity)
	if err != nil {
		return err
	}
	hash, err := e.auth.HashSecret(newPassword)
	if err != nil {
		return mapLockoutError(err)
	}

	if _, err := e.verify(ctx, identity, code, PurposePasswordReset); err != nil {
		return err
	}
	acct, found, err := e.lookup(ctx, identity)
	if err != nil {
		return err
	}
	if !found {
		return ErrAccountNotFound
	}

	if err := e.auth.SetSecretHash(ctx, acct.ID, hash); err != nil {
		err = mapLockoutError(err)
		if errors.Is(err, ErrStoreUnavailable) {
			e.metricInc(MetricStoreUnavailable)
		}
		return err
	}
	if _, err := e.auth.Reset(ctx, acct.ID); err != nil {
		return mapLockoutError(err)
	}

	e.metricInc(MetricPasswordReset)
	e.emitAudit(ctx, auditEventPasswordReset, true, auditTarget{accountID: acct.ID, identity: identity, purpose: PurposePasswordReset}, nil, nil)
	e.logger.InfoContext(ctx, "password reset", "account_id", acct.ID)
	return nil
}
