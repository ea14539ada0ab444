package password

import (
	"errors"
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func mustArgon2(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func TestArgon2HashAndVerify(t *testing.T) {
	h := mustArgon2(t, fastConfig())

	encoded, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	if !LooksHashed(encoded) {
		t.Fatal("expected LooksHashed to accept argon2 encoding")
	}

	ok, err := h.Verify("correct horse battery", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = %v, %v", ok, err)
	}
	ok, err = h.Verify("wrong horse battery", encoded)
	if err != nil || ok {
		t.Fatalf("Verify(wrong) = %v, %v", ok, err)
	}
}

func TestArgon2SaltsDiffer(t *testing.T) {
	h := mustArgon2(t, fastConfig())
	a, _ := h.Hash("same-secret-value")
	b, _ := h.Hash("same-secret-value")
	if a == b {
		t.Fatal("expected distinct salts to yield distinct encodings")
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	old := mustArgon2(t, fastConfig())
	encoded, err := old.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	stronger := fastConfig()
	stronger.Time = 2
	current := mustArgon2(t, stronger)

	up, err := current.NeedsUpgrade(encoded)
	if err != nil || !up {
		t.Fatalf("NeedsUpgrade(weaker) = %v, %v", up, err)
	}
	up, err = old.NeedsUpgrade(encoded)
	if err != nil || up {
		t.Fatalf("NeedsUpgrade(same) = %v, %v", up, err)
	}
}

func TestArgon2RejectsMalformed(t *testing.T) {
	h := mustArgon2(t, fastConfig())
	encoded, _ := h.Hash("version-test-secret")

	cases := map[string]string{
		"garbage":      "not-a-phc-hash",
		"version":      strings.Replace(encoded, "$v=19$", "$v=18$", 1),
		"algorithm":    strings.Replace(encoded, "$argon2id$", "$argon2i$", 1),
		"weak memory":  strings.Replace(encoded, "m=8192", "m=1024", 1),
		"extra params": strings.Replace(encoded, "p=1", "p=1,x=2", 1),
	}
	for name, in := range cases {
		if _, err := h.Verify("version-test-secret", in); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestArgon2LengthBounds(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxPasswordBytes = 64
	h := mustArgon2(t, cfg)

	if _, err := h.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	exact := strings.Repeat("b", 64)
	encoded, err := h.Hash(exact)
	if err != nil {
		t.Fatalf("Hash(max): %v", err)
	}
	if _, err := h.Verify(strings.Repeat("c", 65), encoded); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected Verify to reject long input, got %v", err)
	}
}

func TestArgon2DefaultMaxApplied(t *testing.T) {
	h := mustArgon2(t, fastConfig())
	if _, err := h.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); err == nil {
		t.Fatal("expected over-limit secret to be rejected")
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected weak memory to be rejected")
	}
}
