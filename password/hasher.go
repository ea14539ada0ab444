package password

import (
	"errors"
	"strings"
)

// DefaultMaxPasswordBytes bounds the work a single hash or verify call may do.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrPasswordTooShort is returned by Hash when the secret is below the
	// hasher's minimum length.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned when the secret exceeds MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrMalformedHash is returned when a stored hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnsupportedAlgorithm is returned when no hasher recognises the encoding.
	ErrUnsupportedAlgorithm = errors.New("unsupported password hash algorithm")
)

// Hasher turns plaintext secrets into self-describing encoded hashes and
// checks candidates against them.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// LooksHashed reports whether v has the shape of an encoding produced by one
// of the hashers in this package. Stores use it to refuse plaintext writes.
func LooksHashed(v string) bool {
	switch {
	case strings.HasPrefix(v, "$"+argon2ID+"$"):
		return strings.Count(v, "$") == 5
	case isBcryptPrefix(v):
		return len(v) == bcryptEncodedLen
	default:
		return false
	}
}

// Chain hashes with its primary hasher and verifies with whichever hasher
// understands the stored encoding.
type Chain struct {
	primary Hasher
	legacy  []Hasher
}

// NewChain returns a Chain writing with primary and also accepting legacy
// encodings.
func NewChain(primary Hasher, legacy ...Hasher) *Chain {
	return &Chain{primary: primary, legacy: legacy}
}

// Hash hashes with the primary hasher.
func (c *Chain) Hash(password string) (string, error) {
	return c.primary.Hash(password)
}

// Verify tries the primary hasher first, then each legacy hasher whose
// encoding matches.
func (c *Chain) Verify(password, encodedHash string) (bool, error) {
	h := c.owner(encodedHash)
	if h == nil {
		return false, ErrUnsupportedAlgorithm
	}
	return h.Verify(password, encodedHash)
}

// NeedsUpgrade is true for every hash not owned by the primary hasher.
func (c *Chain) NeedsUpgrade(encodedHash string) (bool, error) {
	h := c.owner(encodedHash)
	if h == nil {
		return false, ErrUnsupportedAlgorithm
	}
	if h != c.primary {
		return true, nil
	}
	return h.NeedsUpgrade(encodedHash)
}

func (c *Chain) owner(encodedHash string) Hasher {
	if owns(c.primary, encodedHash) {
		return c.primary
	}
	for _, h := range c.legacy {
		if owns(h, encodedHash) {
			return h
		}
	}
	return nil
}

func owns(h Hasher, encodedHash string) bool {
	switch h.(type) {
	case *Argon2:
		return strings.HasPrefix(encodedHash, "$"+argon2ID+"$")
	case *Bcrypt:
		return isBcryptPrefix(encodedHash)
	default:
		_, err := h.NeedsUpgrade(encodedHash)
		return err == nil
	}
}

func checkLength(password string, minBytes, maxBytes int) error {
	if len(password) < minBytes {
		return ErrPasswordTooShort
	}
	if len(password) > maxBytes {
		return ErrPasswordTooLong
	}
	return nil
}
