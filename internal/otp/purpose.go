package otp

import "fmt"

// Purpose scopes a code to the flow it was issued for. A code issued for one
// purpose never verifies for another.
type Purpose string

const (
	PurposeSignup        Purpose = "signup"
	PurposeLogin         Purpose = "login"
	PurposePasswordReset Purpose = "password-reset"
	PurposeEmailChange   Purpose = "email-change"
)

// Purposes lists every supported purpose.
var Purposes = []Purpose{PurposeSignup, PurposeLogin, PurposePasswordReset, PurposeEmailChange}

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeSignup, PurposeLogin, PurposePasswordReset, PurposeEmailChange:
		return true
	}
	return false
}

// String returns the wire name.
func (p Purpose) String() string { return string(p) }

// ParsePurpose accepts only the known purpose names.
func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPurpose, s)
	}
	return p, nil
}
