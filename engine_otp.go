package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civicpulse/authcore/internal"
	"github.com/civicpulse/authcore/internal/accounts"
)

const throttleScopeIssue = "issue"

// IssueCode issues a code for (identity, purpose) without sending it. The
// caller owns delivery. Within the resend cooldown it returns
// *RateLimitError.
func (e *Engine) IssueCode(ctx context.Context, identity string, purpose Purpose) (IssueResult, error) {
	if err := e.ready(); err != nil {
		return IssueResult{}, err
	}
	identity, err := validIdentity(identity)
	if err != nil {
		return IssueResult{}, err
	}
	if err := e.throttleIssue(ctx, identity, purpose); err != nil {
		return IssueResult{}, err
	}
	return e.issue(ctx, identity, purpose, "")
}

// CanIssue returns how long until IssueCode would succeed; zero means now.
func (e *Engine) CanIssue(ctx context.Context, identity string, purpose Purpose) (time.Duration, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	identity, err := validIdentity(identity)
	if err != nil {
		return 0, err
	}
	wait, err := e.codes.CanIssue(ctx, identity, purpose)
	if err != nil {
		return 0, mapOTPError(err)
	}
	return wait, nil
}

// VerifyCode consumes a code. At most one call succeeds per issued code.
func (e *Engine) VerifyCode(ctx context.Context, identity, code string, purpose Purpose) (VerifyResult, error) {
	if err := e.ready(); err != nil {
		return VerifyResult{}, err
	}
	identity, err := validIdentity(identity)
	if err != nil {
		return VerifyResult{}, err
	}
	return e.verify(ctx, identity, code, purpose)
}

// FindLiveCode returns the pair's code if it can still be verified, or nil.
// The record never contains the plaintext.
func (e *Engine) FindLiveCode(ctx context.Context, identity string, purpose Purpose) (*OneTimeCode, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	identity, err := validIdentity(identity)
	if err != nil {
		return nil, err
	}
	rec, err := e.codes.FindLive(ctx, identity, purpose)
	if err != nil {
		return nil, mapOTPError(err)
	}
	return rec, nil
}

// ResendCode issues and sends a fresh code for signup, login or
// password-reset. Unknown identities get the uniform receipt.
func (e *Engine) ResendCode(ctx context.Context, identity string, purpose Purpose) (Receipt, error) {
	if err := e.ready(); err != nil {
		return Receipt{}, err
	}
	switch purpose {
	case PurposeSignup:
		return e.resendSignup(ctx, identity)
	case PurposeLogin:
		return e.RequestLoginCode(ctx, identity)
	case PurposePasswordReset:
		return e.ForgotPassword(ctx, identity)
	default:
		// Email-change codes are bound to a signed-in account; use
		// RequestEmailChange.
		return Receipt{}, ErrInvalidPurpose
	}
}

func (e *Engine) resendSignup(ctx context.Context, identity string) (Receipt, error) {
	identity, err := validIdentity(identity)
	if err != nil {
		return Receipt{}, err
	}
	if err := e.throttleIssue(ctx, identity, PurposeSignup); err != nil {
		return Receipt{}, err
	}
	acct, found, err := e.lookup(ctx, identity)
	if err != nil {
		return Receipt{}, err
	}
	if !found {
		return uniformReceipt(), nil
	}
	if acct.Verified {
		return Receipt{}, ErrAlreadyVerified
	}
	return e.issueAndSend(ctx, acct, identity, PurposeSignup)
}

// throttleIssue charges one hit against the caller's address. It runs
// before any account lookup so unknown identities cost the same.
func (e *Engine) throttleIssue(ctx context.Context, identity string, purpose Purpose) error {
	err := mapThrottleError(e.throttle.Allow(ctx, throttleScopeIssue, ClientIPFromContext(ctx)))
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRateLimited) {
		e.metricInc(MetricCodeThrottled)
		e.emitRateLimit(ctx, throttleScopeIssue, auditTarget{identity: identity, purpose: purpose})
		return err
	}
	e.metricInc(MetricStoreUnavailable)
	return err
}

// issue records requestedBy in the code metadata when it is not empty.
func (e *Engine) issue(ctx context.Context, identity string, purpose Purpose, requestedBy string) (IssueResult, error) {
	start := time.Now()
	defer e.observeSince(MetricIssueLatency, start)

	target := auditTarget{identity: identity, purpose: purpose}
	meta := requestMetadata(ctx)
	meta.RequestedBy = requestedBy
	issued, err := e.codes.Issue(ctx, identity, purpose, meta)
	if err != nil {
		err = mapOTPError(err)
		switch {
		case errors.Is(err, ErrRateLimited):
			e.metricInc(MetricCodeCooldown)
		case errors.Is(err, ErrStoreUnavailable):
			e.metricInc(MetricStoreUnavailable)
		}
		e.emitAudit(ctx, auditEventCodeIssued, false, target, err, nil)
		return IssueResult{}, err
	}

	e.metricInc(MetricCodeIssued)
	e.emitAudit(ctx, auditEventCodeIssued, true, target, nil, func() map[string]string {
		return map[string]string{"code_id": issued.Record.ID, "client": issued.Record.Metadata.ClientDescriptor}
	})
	return IssueResult{Code: issued.Code, Record: issued.Record}, nil
}

func (e *Engine) verify(ctx context.Context, identity, code string, purpose Purpose) (VerifyResult, error) {
	start := time.Now()
	defer e.observeSince(MetricVerifyLatency, start)

	target := auditTarget{identity: identity, purpose: purpose}
	res, err := e.codes.Verify(ctx, identity, code, purpose)
	if err != nil {
		err = mapOTPError(err)
		switch {
		case errors.Is(err, ErrInvalidCode):
			e.metricInc(MetricCodeMismatch)
		case errors.Is(err, ErrCodeExpired):
			e.metricInc(MetricCodeExpired)
		case errors.Is(err, ErrAttemptsExhausted):
			e.metricInc(MetricCodeExhausted)
		case errors.Is(err, ErrCodeNotFound):
			e.metricInc(MetricCodeNotFound)
		case errors.Is(err, ErrStoreUnavailable):
			e.metricInc(MetricStoreUnavailable)
		}
		e.emitAudit(ctx, auditEventCodeVerified, false, target, err, nil)
		return VerifyResult{}, err
	}

	e.metricInc(MetricCodeVerified)
	e.emitAudit(ctx, auditEventCodeVerified, true, target, nil, nil)
	return VerifyResult{
		CodeID:      res.CodeID,
		Identity:    res.Identity,
		Purpose:     res.Purpose,
		IssuedAt:    res.IssuedAt,
		RequestedBy: res.Metadata.RequestedBy,
	}, nil
}

// issueAndSend issues a code for identity and hands it to the notifier.
// identity may differ from acct.Identity (email change); such codes are
// bound to acct.
func (e *Engine) issueAndSend(ctx context.Context, acct Account, identity string, purpose Purpose) (Receipt, error) {
	requestedBy := ""
	if purpose == PurposeEmailChange {
		requestedBy = acct.ID
	}
	issued, err := e.issue(ctx, identity, purpose, requestedBy)
	if err != nil {
		return Receipt{}, err
	}
	err = e.notifier.Send(ctx, Notification{
		Kind:        NotificationCode,
		Identity:    identity,
		DisplayName: acct.DisplayName,
		Purpose:     purpose,
		Code:        issued.Code,
		ExpiresAt:   issued.Record.ExpiresAt,
	})
	if err != nil {
		e.metricInc(MetricDeliveryFailure)
		e.logger.WarnContext(ctx, "code delivery failed",
			"purpose", string(purpose),
			"identity_hash", internal.Fingerprint(identity),
			"error", err,
		)
		e.emitAudit(ctx, auditEventCodeDelivery, false, auditTarget{accountID: acct.ID, identity: identity, purpose: purpose}, err, nil)
		if e.config.Notify.RequireDelivery {
			return Receipt{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		return uniformReceipt(), nil
	}
	return Receipt{Message: UniformReceiptMessage, Delivered: true}, nil
}

// lookup loads an account by normalized identity; found=false is not an
// error.
func (e *Engine) lookup(ctx context.Context, identity string) (Account, bool, error) {
	acct, err := e.accounts.GetByIdentity(ctx, identity)
	if errors.Is(err, accounts.ErrNotFound) {
		return Account{}, false, nil
	}
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		return Account{}, false, mapLockoutError(storeFailure(err))
	}
	return acct, true, nil
}

func uniformReceipt() Receipt {
	return Receipt{Message: UniformReceiptMessage}
}

func validIdentity(identity string) (string, error) {
	n, err := accounts.ValidateIdentity(identity)
	if err != nil {
		return "", ErrInvalidIdentity
	}
	return n, nil
}

// storeFailure marks err as an infrastructure failure unless it already is.
func storeFailure(err error) error {
	if errors.Is(err, accounts.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
}
