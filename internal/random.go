package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const resetSecretSize = 32

// ResetTokenLen is the length of an encoded reset token (base64url, no padding).
var ResetTokenLen = base64.RawURLEncoding.EncodedLen(resetSecretSize)

// ErrMalformedResetToken reports a token that cannot have been issued by [NewResetToken].
var ErrMalformedResetToken = errors.New("malformed reset token")

// NewResetToken returns an opaque reset token and the hex digest it is stored under.
// Only the digest is persisted; the token itself goes to the notifier.
func NewResetToken() (token string, digest string, err error) {
	var secret [resetSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", "", err
	}
	token = base64.RawURLEncoding.EncodeToString(secret[:])
	return token, hashResetSecret(secret[:]), nil
}

// ResetTokenDigest validates the shape of a presented token and returns its digest.
func ResetTokenDigest(token string) (string, error) {
	if len(token) != ResetTokenLen {
		return "", ErrMalformedResetToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != resetSecretSize {
		return "", ErrMalformedResetToken
	}
	return hashResetSecret(raw), nil
}

func hashResetSecret(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:])
}
