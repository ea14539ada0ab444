package accounts

import "time"

// Role gates administrative operations.
type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleStandard || r == RoleAdmin }

// LockoutState is the mutable slice of an account owned by the lockout
// state machine.
type LockoutState struct {
	FailedAttempts      int
	LockedUntil         *time.Time
	LastAuthenticatedAt *time.Time
}

// Account is a registered constituent or staff member.
type Account struct {
	ID                  string     `json:"id"`
	Identity            string     `json:"identity"`
	DisplayName         string     `json:"displayName"`
	CredentialHash      string     `json:"-"`
	Verified            bool       `json:"verified"`
	Role                Role       `json:"role"`
	FailedAttempts      int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastAuthenticatedAt *time.Time `json:"lastAuthenticatedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	Version             int64      `json:"-"`
}

// Lockout returns the account's lockout fields as one value.
func (a Account) Lockout() LockoutState {
	return LockoutState{
		FailedAttempts:      a.FailedAttempts,
		LockedUntil:         copyTime(a.LockedUntil),
		LastAuthenticatedAt: copyTime(a.LastAuthenticatedAt),
	}
}

// WithLockout returns a copy of a carrying st.
func (a Account) WithLockout(st LockoutState) Account {
	a.FailedAttempts = st.FailedAttempts
	a.LockedUntil = copyTime(st.LockedUntil)
	a.LastAuthenticatedAt = copyTime(st.LastAuthenticatedAt)
	return a
}

// Clone deep-copies pointer fields.
func (a Account) Clone() Account {
	a.LockedUntil = copyTime(a.LockedUntil)
	a.LastAuthenticatedAt = copyTime(a.LastAuthenticatedAt)
	return a
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
