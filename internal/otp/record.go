package otp

import "time"

// Metadata is request context captured at issuance for audit only.
type Metadata struct {
	OriginAddress    string `json:"originAddress,omitempty"`
	ClientDescriptor string `json:"clientDescriptor,omitempty"`
	// RequestedBy is the account that asked for the code, when the code is
	// bound to one (email change).
	RequestedBy string `json:"requestedBy,omitempty"`
}

// Record is the stored form of a one-time code.
type Record struct {
	ID            string     `json:"id"`
	Identity      string     `json:"identity"`
	Purpose       Purpose    `json:"purpose"`
	CodeHash      [32]byte   `json:"-"`
	Attempts      int        `json:"attempts"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	Metadata      Metadata   `json:"metadata"`
}

// IsExpired is true from ExpiresAt onward.
func IsExpired(r Record, now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsExhausted reports whether every allowed attempt has been spent.
func IsExhausted(r Record, maxAttempts int) bool {
	return r.Attempts >= maxAttempts
}

// RemainingAttempts never returns less than zero.
func RemainingAttempts(r Record, maxAttempts int) int {
	if left := maxAttempts - r.Attempts; left > 0 {
		return left
	}
	return 0
}

// IsLive reports whether r can still be verified.
func IsLive(r Record, now time.Time, maxAttempts int) bool {
	return !IsExpired(r, now) && !IsExhausted(r, maxAttempts)
}

// cooldownRemaining is the single definition of the resend window shared by
// Issue and CanIssue.
func cooldownRemaining(createdAt, now time.Time, window time.Duration) time.Duration {
	if left := window - now.Sub(createdAt); left > 0 {
		return left
	}
	return 0
}
