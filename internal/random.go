package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	minCodeDigits = 4
	maxCodeDigits = 10
)

// ErrInvalidCodeLength is returned for lengths NewNumericCode cannot draw.
var ErrInvalidCodeLength = errors.New("invalid numeric code length")

// NewNumericCode draws a code uniformly from [10^(n-1), 10^n - 1], so the
// leading digit is never zero and every value in the range is equally likely.
func NewNumericCode(digits int) (string, error) {
	if digits < minCodeDigits || digits > maxCodeDigits {
		return "", ErrInvalidCodeLength
	}

	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	code := n.Add(n, low).String()
	if len(code) != digits {
		return "", fmt.Errorf("numeric code generation produced %d digits", len(code))
	}
	return code, nil
}

// NumericRange returns the inclusive bounds NewNumericCode draws from.
func NumericRange(digits int) (low, high int64) {
	low = 1
	for i := 1; i < digits; i++ {
		low *= 10
	}
	return low, low*10 - 1
}

// HashSecret is the SHA-256 digest stored in place of a code.
func HashSecret(secret string) [32]byte {
	return sha256.Sum256([]byte(secret))
}

// Fingerprint is a short stable digest of an identity for logs and audit
// metadata, so raw addresses never reach log sinks.
func Fingerprint(identity string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(identity))))
	return hex.EncodeToString(sum[:8])
}
