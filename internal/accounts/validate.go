package accounts

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinDisplayName = 2
	MaxDisplayName = 50
	maxIdentityLen = 254
)

var (
	ErrInvalidIdentity    = errors.New("identity must look like name@domain.tld")
	ErrInvalidDisplayName = errors.New("display name must be 2-50 characters")
)

var identityPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeIdentity trims and lower-cases an identity. Identities compare
// case-insensitively everywhere.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// ValidateIdentity normalizes and checks identity.
func ValidateIdentity(identity string) (string, error) {
	n := NormalizeIdentity(identity)
	if len(n) > maxIdentityLen || !identityPattern.MatchString(n) {
		return "", ErrInvalidIdentity
	}
	return n, nil
}

// ValidateDisplayName trims name and checks its length in runes.
func ValidateDisplayName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if c := utf8.RuneCountInString(n); c < MinDisplayName || c > MaxDisplayName {
		return "", ErrInvalidDisplayName
	}
	return n, nil
}
