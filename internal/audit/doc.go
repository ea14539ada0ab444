// Package audit relays security events (codes issued, verifications,
// logins, lockouts) to a caller-supplied Sink without blocking the
// request path.
//
// The package owns buffering and delivery only. Which events exist and
// when they fire is decided by the authcore Engine.
package audit
