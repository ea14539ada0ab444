package authcore

import (
	"context"
	"strings"

	"github.com/civicpulse/authcore/internal"
)

const (
	auditEventCodeIssued          = "code_issued"
	auditEventCodeVerified        = "code_verified"
	auditEventCodeDelivery        = "code_delivery_failed"
	auditEventRateLimitTriggered  = "rate_limit_triggered"
	auditEventAccountCreated      = "account_created"
	auditEventAccountVerified     = "account_verified"
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventCodeLoginSuccess    = "code_login_success"
	auditEventPasswordReset       = "password_reset"
	auditEventEmailChangeRequest  = "email_change_request"
	auditEventEmailChangeConfirm  = "email_change_confirm"
	auditEventAccountLocked       = "account_locked"
	auditEventAccountUnlocked     = "account_unlocked"
	auditEventWelcomeDeliveryFail = "welcome_delivery_failed"
)

// auditTarget is who an event is about. Identity is fingerprinted before it
// leaves the engine.
type auditTarget struct {
	accountID string
	identity  string
	purpose   Purpose
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	target auditTarget,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: target.accountID,
		Purpose:   string(target.purpose),
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Error:     auditErrorCode(err),
		Metadata:  metadata,
	}
	if target.identity != "" {
		event.Identity = internal.Fingerprint(target.identity)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, target auditTarget) {
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, target, ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

// auditErrorCode is the lower-case form of ErrorCode.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}
	return strings.ToLower(ErrorCode(err))
}
