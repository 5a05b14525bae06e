package password

import (
	"errors"
	"fmt"
)

var (
	// ErrHashFormat reports a stored hash that cannot be parsed. Callers treat it as a
	// verification failure.
	ErrHashFormat = errors.New("password: malformed hash")
	// ErrPasswordTooShort is returned by [Hasher.CheckPolicy] below MinLength bytes.
	ErrPasswordTooShort = errors.New("password: too short")
	// ErrPasswordTooLong is returned by [Hasher.CheckPolicy] above MaxLength bytes.
	ErrPasswordTooLong = errors.New("password: too long")
	// ErrUnsupportedAlgorithm is returned by [New] for an unknown Algorithm value.
	ErrUnsupportedAlgorithm = errors.New("password: unsupported algorithm")
)

// HashFormatError carries the parse failure detail for a malformed stored hash.
// It unwraps to [ErrHashFormat].
type HashFormatError struct {
	Reason string
}

func (e *HashFormatError) Error() string {
	return "password: malformed hash: " + e.Reason
}

func (e *HashFormatError) Unwrap() error { return ErrHashFormat }

func hashFormatError(reason string) error {
	return &HashFormatError{Reason: reason}
}

const (
	// AlgorithmBcrypt selects bcrypt for new hashes.
	AlgorithmBcrypt = "bcrypt"
	// AlgorithmArgon2id selects argon2id for new hashes.
	AlgorithmArgon2id = "argon2id"

	// DefaultMinLength is the minimum accepted password length in bytes.
	DefaultMinLength = 10
)

// Config selects the algorithm for new hashes and the password length policy.
// Verification accepts both formats regardless of Algorithm.
type Config struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Params
	MinLength  int
	MaxLength  int
}

// DefaultConfig returns bcrypt at cost 12 with a 10..72 byte policy.
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: MinBcryptCost,
		Argon2:     DefaultArgon2Params(),
		MinLength:  DefaultMinLength,
		MaxLength:  bcryptMaxBytes,
	}
}

type scheme interface {
	hash(plaintext string) (string, error)
	verify(plaintext, encoded string) (bool, error)
	needsUpgrade(encoded string) (bool, error)
}

// Hasher hashes new passwords with the configured algorithm and verifies stored
// hashes of either supported format. It is safe for concurrent use.
type Hasher struct {
	cfg     Config
	current string
	bcrypt  bcryptScheme
	argon2  argon2Scheme
}

// New validates cfg and returns a [Hasher].
func New(cfg Config) (*Hasher, error) {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = bcryptMaxBytes
	}
	if cfg.MaxLength < cfg.MinLength {
		return nil, errors.New("password max length must be >= min length")
	}

	h := &Hasher{cfg: cfg, current: cfg.Algorithm}
	switch cfg.Algorithm {
	case AlgorithmBcrypt:
		if err := validateBcryptCost(cfg.BcryptCost); err != nil {
			return nil, err
		}
		if cfg.MaxLength > bcryptMaxBytes {
			return nil, fmt.Errorf("password max length must be <= %d for bcrypt", bcryptMaxBytes)
		}
	case AlgorithmArgon2id:
		if err := validateArgon2Params(cfg.Argon2); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnsupportedAlgorithm
	}

	h.bcrypt = bcryptScheme{cost: cfg.BcryptCost}
	if h.bcrypt.cost == 0 {
		h.bcrypt.cost = MinBcryptCost
	}
	h.argon2 = argon2Scheme{params: cfg.Argon2}
	if h.argon2.params == (Argon2Params{}) {
		h.argon2.params = DefaultArgon2Params()
	}
	return h, nil
}

// Algorithm returns the algorithm used for new hashes.
func (h *Hasher) Algorithm() string { return h.current }

// CheckPolicy enforces the byte-length policy on a candidate password.
// Password processing uses raw string bytes exactly as provided (no Unicode normalization).
func (h *Hasher) CheckPolicy(plaintext string) error {
	if len(plaintext) < h.cfg.MinLength {
		return ErrPasswordTooShort
	}
	if len(plaintext) > h.cfg.MaxLength {
		return ErrPasswordTooLong
	}
	return nil
}

// Hash returns an encoded hash of plaintext after enforcing the length policy.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if err := h.CheckPolicy(plaintext); err != nil {
		return "", err
	}
	return h.schemeFor(h.current).hash(plaintext)
}

// Verify compares plaintext against an encoded bcrypt or argon2id hash in
// constant time. A malformed hash yields false and an error wrapping [ErrHashFormat].
func (h *Hasher) Verify(plaintext, encoded string) (bool, error) {
	s, err := h.detect(encoded)
	if err != nil {
		return false, err
	}
	// Inputs above the policy ceiling can never have been hashed; skip the KDF.
	if len(plaintext) > h.cfg.MaxLength {
		return false, nil
	}
	return s.verify(plaintext, encoded)
}

// NeedsUpgrade reports whether encoded was produced by a different algorithm or a
// weaker work factor than the current configuration.
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	s, err := h.detect(encoded)
	if err != nil {
		return false, err
	}
	if s != h.schemeFor(h.current) {
		return true, nil
	}
	return s.needsUpgrade(encoded)
}

func (h *Hasher) detect(encoded string) (scheme, error) {
	switch {
	case isBcryptHash(encoded):
		return h.bcrypt, nil
	case isArgon2Hash(encoded):
		return h.argon2, nil
	default:
		return nil, hashFormatError("unrecognized hash prefix")
	}
}

func (h *Hasher) schemeFor(algorithm string) scheme {
	if algorithm == AlgorithmArgon2id {
		return h.argon2
	}
	return h.bcrypt
}
