package authcore

import (
	"context"
	"errors"

	"github.com/civicpulse/authcore/internal/accounts"
)

// RequestEmailChange sends an email-change code to newIdentity on behalf of
// accountID. If newIdentity already belongs to an account the caller gets
// the uniform receipt and nothing is sent.
func (e *Engine) RequestEmailChange(ctx context.Context, accountID, newIdentity string) (Receipt, error) {
	if err := e.ready(); err != nil {
		return Receipt{}, err
	}
	newIdentity, err := validIdentity(newIdentity)
	if err != nil {
		return Receipt{}, err
	}
	acct, err := e.Account(ctx, accountID)
	if err != nil {
		return Receipt{}, err
	}
	if !acct.Verified {
		return Receipt{}, ErrAccountUnverified
	}
	if newIdentity == acct.Identity {
		return Receipt{}, ErrInvalidIdentity
	}
	if err := e.throttleIssue(ctx, newIdentity, PurposeEmailChange); err != nil {
		return Receipt{}, err
	}

	_, taken, err := e.lookup(ctx, newIdentity)
	if err != nil {
		return Receipt{}, err
	}
	target := auditTarget{accountID: acct.ID, identity: newIdentity, purpose: PurposeEmailChange}
	if taken {
		e.emitAudit(ctx, auditEventEmailChangeRequest, false, target, ErrIdentityTaken, nil)
		return uniformReceipt(), nil
	}

	receipt, err := e.issueAndSend(ctx, acct, newIdentity, PurposeEmailChange)
	if err != nil {
		return Receipt{}, err
	}
	e.emitAudit(ctx, auditEventEmailChangeRequest, true, target, nil, nil)
	return receipt, nil
}

// ConfirmEmailChange consumes the code sent to newIdentity and re-keys the
// account. A code requested by another account is reported as not found and
// is left untouched.
func (e *Engine) ConfirmEmailChange(ctx context.Context, accountID, newIdentity, code string) (Account, error) {
	if err := e.ready(); err != nil {
		return Account{}, err
	}
	newIdentity, err := validIdentity(newIdentity)
	if err != nil {
		return Account{}, err
	}
	if _, err := e.Account(ctx, accountID); err != nil {
		return Account{}, err
	}
	target := auditTarget{accountID: accountID, identity: newIdentity, purpose: PurposeEmailChange}
	live, err := e.codes.FindLive(ctx, newIdentity, PurposeEmailChange)
	if err != nil {
		err = mapOTPError(err)
		if errors.Is(err, ErrStoreUnavailable) {
			e.metricInc(MetricStoreUnavailable)
		}
		return Account{}, err
	}
	if live != nil && live.Metadata.RequestedBy != accountID {
		e.metricInc(MetricCodeNotFound)
		e.emitAudit(ctx, auditEventEmailChangeConfirm, false, target, ErrCodeNotFound, nil)
		return Account{}, ErrCodeNotFound
	}

	res, err := e.verify(ctx, newIdentity, code, PurposeEmailChange)
	if err != nil {
		return Account{}, err
	}
	// the pair was reissued to another account between the check and the
	// consume
	if res.RequestedBy != accountID {
		e.emitAudit(ctx, auditEventEmailChangeConfirm, false, target, ErrCodeNotFound, nil)
		return Account{}, ErrCodeNotFound
	}

	if err := e.accounts.ChangeIdentity(ctx, accountID, newIdentity); err != nil {
		if !errors.Is(err, accounts.ErrNotFound) && !errors.Is(err, accounts.ErrIdentityTaken) {
			e.metricInc(MetricStoreUnavailable)
			err = storeFailure(err)
		}
		err = mapLockoutError(err)
		e.emitAudit(ctx, auditEventEmailChangeConfirm, false, target, err, nil)
		return Account{}, err
	}

	acct, err := e.Account(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	e.metricInc(MetricEmailChanged)
	e.emitAudit(ctx, auditEventEmailChangeConfirm, true, target, nil, nil)
	e.logger.InfoContext(ctx, "email changed", "account_id", acct.ID)
	return acct, nil
}
