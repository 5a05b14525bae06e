package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id floors follow the OWASP minimum profile (19 MiB, t=2, p=1).
const (
	minMemoryKB    uint32 = 19 * 1024
	minTimeCost    uint32 = 2
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2ID              = "argon2id"

	// maxMemoryKB bounds the memory a stored hash may demand during verification.
	maxMemoryKB uint64 = 1 << 20
)

// Argon2Params configures the argon2id work factor.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns the argon2id profile used when Algorithm is "argon2id".
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

type argon2Scheme struct {
	params Argon2Params
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func isArgon2Hash(encoded string) bool {
	return strings.HasPrefix(encoded, "$"+argon2ID+"$")
}

func (a argon2Scheme) hash(plaintext string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(plaintext),
		salt,
		a.params.Time,
		a.params.Memory,
		a.params.Parallelism,
		a.params.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		a.params.Memory,
		a.params.Time,
		a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a argon2Scheme) verify(plaintext, encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(plaintext),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.hash)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

func (a argon2Scheme) needsUpgrade(encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	switch {
	case a.params.Memory > parsed.memory:
		return true, nil
	case a.params.Time > parsed.time:
		return true, nil
	case a.params.Parallelism > parsed.parallelism:
		return true, nil
	case a.params.KeyLength != uint32(len(parsed.hash)):
		return true, nil
	}
	return false, nil
}

func parsePHC(encoded string) (*parsedPHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, hashFormatError("invalid PHC format")
	}
	if parts[1] != argon2ID {
		return nil, hashFormatError("unsupported algorithm")
	}

	if !strings.HasPrefix(parts[2], "v=") {
		return nil, hashFormatError("missing argon2 version")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, hashFormatError("unsupported argon2 version")
	}

	parsed := &parsedPHC{}
	if err := parseParams(parts[3], parsed); err != nil {
		return nil, err
	}

	parsed.salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(parsed.salt) < int(minSaltLength) {
		return nil, hashFormatError("invalid salt")
	}
	parsed.hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(parsed.hash) < int(minKeyLength) {
		return nil, hashFormatError("invalid hash")
	}

	return parsed, nil
}

func parseParams(part string, out *parsedPHC) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return hashFormatError("invalid parameter format")
	}

	var memorySet, timeSet, parallelismSet bool
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return hashFormatError("invalid parameter entry")
		}

		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n == 0 || n > maxMemoryKB {
				return hashFormatError("invalid memory parameter")
			}
			out.memory = uint32(n)
			memorySet = true
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n == 0 {
				return hashFormatError("invalid time parameter")
			}
			out.time = uint32(n)
			timeSet = true
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n == 0 {
				return hashFormatError("invalid parallelism parameter")
			}
			out.parallelism = uint8(n)
			parallelismSet = true
		default:
			return hashFormatError("unsupported parameter")
		}
	}

	if !memorySet || !timeSet || !parallelismSet {
		return hashFormatError("missing parameters")
	}
	return nil
}

func validateArgon2Params(p Argon2Params) error {
	if p.Memory < minMemoryKB {
		return fmt.Errorf("argon2 memory must be >= %d KB", minMemoryKB)
	}
	if p.Time < minTimeCost {
		return fmt.Errorf("argon2 time must be >= %d", minTimeCost)
	}
	if p.Parallelism < minParallelism {
		return fmt.Errorf("argon2 parallelism must be >= %d", minParallelism)
	}
	if p.SaltLength < minSaltLength {
		return fmt.Errorf("argon2 salt length must be >= %d", minSaltLength)
	}
	if p.KeyLength < minKeyLength {
		return fmt.Errorf("argon2 key length must be >= %d", minKeyLength)
	}
	return nil
}
