package accounts

import (
	"strings"
	"testing"
)

func TestValidateIdentity(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Voter@Example.org", "voter@example.org", true},
		{"  a.b+tag@sub.domain.io ", "a.b+tag@sub.domain.io", true},
		{"no-at-sign.org", "", false},
		{"missing@tld", "", false},
		{"two@@example.org", "", false},
		{"spa ce@example.org", "", false},
		{"", "", false},
		{strings.Repeat("a", 250) + "@x.io", "", false},
	}
	for _, tc := range cases {
		got, err := ValidateIdentity(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ValidateIdentity(%q) = %q, %v", tc.in, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ValidateIdentity(%q) accepted", tc.in)
		}
	}
}

func TestValidateDisplayName(t *testing.T) {
	if _, err := ValidateDisplayName(" J "); err == nil {
		t.Fatal("single rune accepted")
	}
	if got, err := ValidateDisplayName("  Zoë  "); err != nil || got != "Zoë" {
		t.Fatalf("ValidateDisplayName = %q, %v", got, err)
	}
	if _, err := ValidateDisplayName(strings.Repeat("é", 50)); err != nil {
		t.Fatalf("50 runes rejected: %v", err)
	}
	if _, err := ValidateDisplayName(strings.Repeat("é", 51)); err == nil {
		t.Fatal("51 runes accepted")
	}
}
