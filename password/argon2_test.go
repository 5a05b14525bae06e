package password

import (
	"errors"
	"strings"
	"testing"
)

func argon2Config() Config {
	return Config{
		Algorithm: AlgorithmArgon2id,
		Argon2: Argon2Params{
			Memory:      19 * 1024,
			Time:        2,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		MinLength: 10,
		MaxLength: 128,
	}
}

func newArgon2Hasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := New(argon2Config())
	if err != nil {
		t.Fatalf("New argon2 hasher: %v", err)
	}
	return h
}

func TestArgon2HashAndVerify(t *testing.T) {
	h := newArgon2Hasher(t)

	hash, err := h.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := h.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}

	ok, err = h.Verify("P@ssw0rd-ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestArgon2SaltsDiffer(t *testing.T) {
	h := newArgon2Hasher(t)
	a, err := h.Hash("same-password-1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := h.Hash("same-password-1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	old := newArgon2Hasher(t)
	hash, err := old.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	cfg := argon2Config()
	cfg.Argon2.Time = 3
	stronger, err := New(cfg)
	if err != nil {
		t.Fatalf("New stronger hasher: %v", err)
	}
	needs, err := stronger.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needs {
		t.Fatal("expected NeedsUpgrade for weaker parameters")
	}

	needs, err = old.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if needs {
		t.Fatal("expected no upgrade for current parameters")
	}
}

func TestVerifyMalformedHashIsFormatError(t *testing.T) {
	h := newArgon2Hasher(t)

	cases := []string{
		"not-a-phc-hash",
		"",
		"$argon2id$v=19$m=19456,t=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
		"$2b$12$short",
	}
	for _, encoded := range cases {
		ok, err := h.Verify("password-123", encoded)
		if ok {
			t.Fatalf("malformed hash %q verified", encoded)
		}
		if !errors.Is(err, ErrHashFormat) {
			t.Fatalf("expected ErrHashFormat for %q, got %v", encoded, err)
		}
		var hfe *HashFormatError
		if !errors.As(err, &hfe) || hfe.Reason == "" {
			t.Fatalf("expected HashFormatError with reason for %q", encoded)
		}
	}
}

func TestPolicyLengthBounds(t *testing.T) {
	h := newArgon2Hasher(t)

	if _, err := h.Hash(""); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort for empty, got %v", err)
	}
	if _, err := h.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", 129)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("b", 128)); err != nil {
		t.Fatalf("expected exactly-max password to be accepted: %v", err)
	}
}

func TestArgon2ParamsFloor(t *testing.T) {
	cfg := argon2Config()
	cfg.Argon2.Memory = 8 * 1024
	if _, err := New(cfg); err == nil {
		t.Fatal("expected memory below floor to be rejected")
	}

	cfg = argon2Config()
	cfg.Argon2.Time = 1
	if _, err := New(cfg); err == nil {
		t.Fatal("expected time cost below floor to be rejected")
	}
}
