package internal

import (
	"strconv"
	"testing"
)

func TestNewNumericCodeShapeAndRange(t *testing.T) {
	for _, digits := range []int{4, 6, 8} {
		low, high := NumericRange(digits)
		for i := 0; i < 200; i++ {
			code, err := NewNumericCode(digits)
			if err != nil {
				t.Fatalf("NewNumericCode(%d): %v", digits, err)
			}
			if len(code) != digits {
				t.Fatalf("code %q has %d digits, want %d", code, len(code), digits)
			}
			v, err := strconv.ParseInt(code, 10, 64)
			if err != nil {
				t.Fatalf("code %q is not numeric: %v", code, err)
			}
			if v < low || v > high {
				t.Fatalf("code %d outside [%d, %d]", v, low, high)
			}
		}
	}
}

func TestNewNumericCodeLeadingDigitsSpread(t *testing.T) {
	seen := map[byte]bool{}
	for i := 0; i < 2000 && len(seen) < 9; i++ {
		code, err := NewNumericCode(6)
		if err != nil {
			t.Fatalf("NewNumericCode: %v", err)
		}
		seen[code[0]] = true
	}
	if len(seen) != 9 {
		t.Fatalf("expected all leading digits 1-9, saw %d", len(seen))
	}
	if seen['0'] {
		t.Fatal("leading zero must never be generated")
	}
}

func TestNewNumericCodeRejectsLength(t *testing.T) {
	for _, digits := range []int{0, 3, 11} {
		if _, err := NewNumericCode(digits); err != ErrInvalidCodeLength {
			t.Fatalf("NewNumericCode(%d) err = %v", digits, err)
		}
	}
}

func TestFingerprintNormalizes(t *testing.T) {
	if Fingerprint(" A@B.com ") != Fingerprint("a@b.com") {
		t.Fatal("fingerprint must ignore case and surrounding space")
	}
	if len(Fingerprint("a@b.com")) != 16 {
		t.Fatal("fingerprint must be 16 hex chars")
	}
}
