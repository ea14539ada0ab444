package authcore

import (
	"context"
	"time"

	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/internal/audit"
	"github.com/civicpulse/authcore/internal/otp"
)

type (
	Account      = accounts.Account
	Role         = accounts.Role
	OneTimeCode  = otp.Record
	Purpose      = otp.Purpose
	CodeMetadata = otp.Metadata

	// CodeStore persists one-time codes. See internal/otp for the contract.
	CodeStore = otp.Store
	// AccountStore persists accounts. See internal/accounts for the contract.
	AccountStore = accounts.Store

	AuditEvent = audit.Event
	AuditSink  = audit.Sink
)

const (
	RoleStandard = accounts.RoleStandard
	RoleAdmin    = accounts.RoleAdmin

	PurposeSignup        = otp.PurposeSignup
	PurposeLogin         = otp.PurposeLogin
	PurposePasswordReset = otp.PurposePasswordReset
	PurposeEmailChange   = otp.PurposeEmailChange
)

// ParsePurpose accepts the wire names signup, login, password-reset and
// email-change.
func ParsePurpose(s string) (Purpose, error) {
	p, err := otp.ParsePurpose(s)
	if err != nil {
		return "", ErrInvalidPurpose
	}
	return p, nil
}

// NotificationKind distinguishes code deliveries from informational mail.
type NotificationKind string

const (
	NotificationCode    NotificationKind = "code"
	NotificationWelcome NotificationKind = "welcome"
)

// Notification is one message for a Notifier. Code is set only for
// NotificationCode.
type Notification struct {
	Kind        NotificationKind
	Identity    string
	DisplayName string
	Purpose     Purpose
	Code        string
	ExpiresAt   time.Time
}

// Notifier delivers notifications. Send errors are non-fatal unless
// Config.Notify.RequireDelivery is set.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

// Session is what a client receives after a successful login.
type Session struct {
	SessionID   string    `json:"sessionId"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Account     Account   `json:"account"`
}

// SessionIssuer mints a session for a verified account.
type SessionIssuer interface {
	Mint(ctx context.Context, acct Account) (Session, error)
}

// UniformReceiptMessage is returned whether or not the identity exists.
const UniformReceiptMessage = "If an account exists for this address, a code has been sent."

// Receipt acknowledges a code request. Delivered is false when the notifier
// failed or nothing was sent.
type Receipt struct {
	Message   string `json:"message"`
	Delivered bool   `json:"-"`
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Identity    string
	DisplayName string
	Password    string
}

// IssueResult carries the plaintext code exactly once.
type IssueResult struct {
	Code   string
	Record OneTimeCode
}

// VerifyResult is a consumed code. RequestedBy is the account the code was
// issued for, when it was bound to one.
type VerifyResult struct {
	CodeID      string
	Identity    string
	Purpose     Purpose
	IssuedAt    time.Time
	RequestedBy string
}
