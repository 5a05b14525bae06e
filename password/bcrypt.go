package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the lowest bcrypt work factor accepted by [New].
const MinBcryptCost = 12

// bcryptMaxBytes is the input length bcrypt silently truncates at.
const bcryptMaxBytes = 72

type bcryptScheme struct {
	cost int
}

func isBcryptHash(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func (b bcryptScheme) hash(plaintext string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return string(out), nil
}

func (b bcryptScheme) verify(plaintext, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, hashFormatError(err.Error())
	}
}

func (b bcryptScheme) needsUpgrade(encoded string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, hashFormatError(err.Error())
	}
	return cost < b.cost, nil
}

func validateBcryptCost(cost int) error {
	if cost < MinBcryptCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", MinBcryptCost, bcrypt.MaxCost)
	}
	return nil
}
