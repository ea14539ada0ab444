package authcore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/civicpulse/authcore/jwt"
)

type jwtSessionIssuer struct {
	manager *jwt.Manager
}

// NewJWTSessionIssuer mints stateless sessions: a random session ID and a
// signed access token carrying the account ID and role.
func NewJWTSessionIssuer(m *jwt.Manager) SessionIssuer {
	return &jwtSessionIssuer{manager: m}
}

// Mint signs an access token for acct.
func (s *jwtSessionIssuer) Mint(_ context.Context, acct Account) (Session, error) {
	sid := uuid.NewString()
	token, exp, err := s.manager.CreateAccess(jwt.Subject{
		AccountID: acct.ID,
		SessionID: sid,
		Role:      string(acct.Role),
	})
	if err != nil {
		return Session{}, fmt.Errorf("create access token: %w", err)
	}
	return Session{SessionID: sid, AccessToken: token, ExpiresAt: exp, Account: acct}, nil
}

// mint issues a session for a verified account.
func (e *Engine) mint(ctx context.Context, acct Account) (Session, error) {
	if !acct.Verified {
		return Session{}, ErrAccountUnverified
	}
	sess, err := e.sessions.Mint(ctx, acct)
	if err != nil {
		e.logger.ErrorContext(ctx, "session issuance failed", "account_id", acct.ID, "error", err)
		return Session{}, fmt.Errorf("%w: %v", ErrSessionIssuance, err)
	}
	return sess, nil
}
