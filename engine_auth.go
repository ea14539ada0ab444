package authcore

import (
	"context"
	"errors"
	"time"
)

// Authenticate checks a password and applies the lockout state machine. It
// does not require the account to be verified and mints nothing.
func (e *Engine) Authenticate(ctx context.Context, identity, secret string) (Account, error) {
	if err := e.ready(); err != nil {
		return Account{}, err
	}
	identity, err := validIdentity(identity)
	if err != nil {
		// Malformed identities fail like unknown ones.
		return Account{}, ErrInvalidCredentials
	}
	return e.authenticate(ctx, identity, secret)
}

func (e *Engine) authenticate(ctx context.Context, identity, secret string) (Account, error) {
	start := time.Now()
	defer e.observeSince(MetricAuthenticateLatency, start)

	target := auditTarget{identity: identity}
	acct, err := e.auth.Authenticate(ctx, identity, secret)
	if err != nil {
		err = mapLockoutError(err)
		switch {
		case errors.Is(err, ErrAccountLocked):
			e.metricInc(MetricLoginLocked)
		case errors.Is(err, ErrInvalidCredentials):
			e.metricInc(MetricLoginFailure)
		case errors.Is(err, ErrStoreUnavailable):
			e.metricInc(MetricStoreUnavailable)
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, target, err, nil)
		return Account{}, err
	}
	return acct, nil
}

// Login authenticates a password and mints a session for a verified
// account.
func (e *Engine) Login(ctx context.Context, identity, secret string) (Session, error) {
	acct, err := e.Authenticate(ctx, identity, secret)
	if err != nil {
		return Session{}, err
	}
	target := auditTarget{accountID: acct.ID, identity: acct.Identity}
	if !acct.Verified {
		e.metricInc(MetricLoginUnverified)
		e.emitAudit(ctx, auditEventLoginFailure, false, target, ErrAccountUnverified, nil)
		return Session{}, ErrAccountUnverified
	}

	sess, err := e.mint(ctx, acct)
	if err != nil {
		return Session{}, err
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, target, nil, nil)
	return sess, nil
}

// RequestLoginCode sends a login code to a verified account. Unknown and
// unverified identities get the same receipt and nothing is sent.
func (e *Engine) RequestLoginCode(ctx context.Context, identity string) (Receipt, error) {
	if err := e.ready(); err != nil {
		return Receipt{}, err
	}
	identity, err := validIdentity(identity)
	if err != nil {
		return Receipt{}, err
	}
	if err := e.throttleIssue(ctx, identity, PurposeLogin); err != nil {
		return Receipt{}, err
	}
	acct, found, err := e.lookup(ctx, identity)
	if err != nil {
		return Receipt{}, err
	}
	if !found || !acct.Verified {
		return uniformReceipt(), nil
	}
	return e.issueAndSend(ctx, acct, identity, PurposeLogin)
}

// LoginWithCode consumes a login code and mints a session. Proving the
// mailbox clears any password lockout.
func (e *Engine) LoginWithCode(ctx context.Context, identity, code string) (Session, error) {
	if err := e.ready(); err != nil {
		return Session{}, err
	}
	identity, err := validIdentity(identity)
	if err != nil {
		return Session{}, err
	}
	if _, err := e.verify(ctx, identity, code, PurposeLogin); err != nil {
		return Session{}, err
	}

	acct, found, err := e.lookup(ctx, identity)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, ErrAccountNotFound
	}
	if !acct.Verified {
		e.metricInc(MetricLoginUnverified)
		return Session{}, ErrAccountUnverified
	}

	acct, err = e.auth.Reset(ctx, acct.ID)
	if err != nil {
		return Session{}, mapLockoutError(err)
	}
	sess, err := e.mint(ctx, acct)
	if err != nil {
		return Session{}, err
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventCodeLoginSuccess, true, auditTarget{accountID: acct.ID, identity: identity, purpose: PurposeLogin}, nil, nil)
	return sess, nil
}

// UnlockAccount clears failures and any lock. It is an operator action.
func (e *Engine) UnlockAccount(ctx context.Context, accountID string) (Account, error) {
	if err := e.ready(); err != nil {
		return Account{}, err
	}
	acct, err := e.auth.Unlock(ctx, accountID)
	if err != nil {
		return Account{}, mapLockoutError(err)
	}
	e.emitAudit(ctx, auditEventAccountUnlocked, true, auditTarget{accountID: acct.ID, identity: acct.Identity}, nil, nil)
	e.logger.InfoContext(ctx, "account unlocked", "account_id", acct.ID)
	return acct, nil
}

func (e *Engine) onAccountLocked(ctx context.Context, accountID string, until time.Time) {
	e.metricInc(MetricAccountLocked)
	e.emitAudit(ctx, auditEventAccountLocked, true, auditTarget{accountID: accountID}, nil, func() map[string]string {
		return map[string]string{"locked_until": until.UTC().Format(time.RFC3339)}
	})
}
