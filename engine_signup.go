package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/civicpulse/authcore/internal/accounts"
)

// Register creates an unverified account and sends it a signup code. The
// receipt is the same whether or not the identity was already registered.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (Receipt, error) {
	if err := e.ready(); err != nil {
		return Receipt{}, err
	}
	identity, err := validIdentity(req.Identity)
	if err != nil {
		return Receipt{}, err
	}
	displayName, err := accounts.ValidateDisplayName(req.DisplayName)
	if err != nil {
		return Receipt{}, ErrInvalidDisplayName
	}

	// Hash before the lookup so both branches spend the same work.
	hash, err := e.auth.HashSecret(req.Password)
	if err != nil {
		return Receipt{}, mapLockoutError(err)
	}

	if err := e.throttleIssue(ctx, identity, PurposeSignup); err != nil {
		return Receipt{}, err
	}

	existing, found, err := e.lookup(ctx, identity)
	if err != nil {
		return Receipt{}, err
	}
	if found {
		return e.registerExisting(ctx, existing, identity)
	}

	acct := Account{
		ID:             uuid.NewString(),
		Identity:       identity,
		DisplayName:    displayName,
		CredentialHash: hash,
		Role:           RoleStandard,
		CreatedAt:      e.now().UTC(),
	}
	if err := e.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, accounts.ErrIdentityTaken) {
			// Lost a race with a concurrent registration.
			existing, found, lerr := e.lookup(ctx, identity)
			if lerr != nil {
				return Receipt{}, lerr
			}
			if found {
				return e.registerExisting(ctx, existing, identity)
			}
			return uniformReceipt(), nil
		}
		e.metricInc(MetricStoreUnavailable)
		return Receipt{}, mapLockoutError(storeFailure(err))
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, auditTarget{accountID: acct.ID, identity: identity}, nil, nil)
	e.logger.InfoContext(ctx, "account created", "account_id", acct.ID)

	return e.issueAndSend(ctx, acct, identity, PurposeSignup)
}

// registerExisting never reveals that the identity is taken. Verified
// accounts get nothing; unverified ones get a fresh signup code.
func (e *Engine) registerExisting(ctx context.Context, acct Account, identity string) (Receipt, error) {
	if acct.Verified {
		return uniformReceipt(), nil
	}
	return e.issueAndSend(ctx, acct, identity, PurposeSignup)
}

// ConfirmSignup consumes a signup code, marks the account verified and
// returns a session.
func (e *Engine) ConfirmSignup(ctx context.Context, identity, code string) (Session, error) {
	if err := e.ready(); err != nil {
		return Session{}, err
	}
	identity, err := validIdentity(identity)
	if err != nil {
		return Session{}, err
	}

	acct, found, err := e.lookup(ctx, identity)
	if err != nil {
		return Session{}, err
	}
	if found && acct.Verified {
		return Session{}, ErrAlreadyVerified
	}

	if _, err := e.verify(ctx, identity, code, PurposeSignup); err != nil {
		return Session{}, err
	}
	if !found {
		// The account was swept after the code was issued.
		return Session{}, ErrAccountNotFound
	}

	flipped, err := e.accounts.MarkVerified(ctx, acct.ID)
	if err != nil {
		if !errors.Is(err, accounts.ErrNotFound) {
			e.metricInc(MetricStoreUnavailable)
			err = storeFailure(err)
		}
		return Session{}, mapLockoutError(err)
	}
	if !flipped {
		return Session{}, ErrAlreadyVerified
	}
	acct.Verified = true

	e.metricInc(MetricAccountVerified)
	e.emitAudit(ctx, auditEventAccountVerified, true, auditTarget{accountID: acct.ID, identity: identity, purpose: PurposeSignup}, nil, nil)

	if e.config.Notify.SendWelcome {
		e.sendWelcome(ctx, acct)
	}
	return e.mint(ctx, acct)
}

func (e *Engine) sendWelcome(ctx context.Context, acct Account) {
	err := e.notifier.Send(ctx, Notification{
		Kind:        NotificationWelcome,
		Identity:    acct.Identity,
		DisplayName: acct.DisplayName,
	})
	if err == nil {
		return
	}
	e.metricInc(MetricDeliveryFailure)
	e.logger.WarnContext(ctx, "welcome delivery failed", "account_id", acct.ID, "error", err)
	e.emitAudit(ctx, auditEventWelcomeDeliveryFail, false, auditTarget{accountID: acct.ID, identity: acct.Identity}, err, nil)
}
