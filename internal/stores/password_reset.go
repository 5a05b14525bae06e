package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetRecordVersionV1 = 1

	resetKeyPrefix = "pwreset:"
)

var (
	ErrResetNotFound         = errors.New("reset record not found")
	ErrResetExpired          = errors.New("reset record expired")
	ErrResetUsed             = errors.New("reset record already used")
	ErrResetCorrupt          = errors.New("reset record corrupt")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

// PasswordResetRecord is stored under pwreset:{digest}.
type PasswordResetRecord struct {
	UserID    string
	IssuedAt  int64
	ExpiresAt int64
	Used      bool
}

// PasswordResetStore keeps reset records beyond their expiry for a grace period so
// expired and used tokens stay distinguishable from unknown ones.
type PasswordResetStore struct {
	redis redis.UniversalClient
	now   func() time.Time
}

func NewPasswordResetStore(redisClient redis.UniversalClient, now func() time.Time) *PasswordResetStore {
	if now == nil {
		now = time.Now
	}
	return &PasswordResetStore{
		redis: redisClient,
		now:   now,
	}
}

func (s *PasswordResetStore) key(digest string) string {
	return resetKeyPrefix + digest
}

// Save stores a fresh record. retention is the key TTL and must cover the token's
// lifetime plus the grace period.
func (s *PasswordResetStore) Save(
	ctx context.Context,
	digest string,
	record *PasswordResetRecord,
	retention time.Duration,
) error {
	if retention <= 0 {
		return errors.New("reset retention must be > 0")
	}
	encoded, err := encodePasswordResetRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(digest), encoded, retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	return nil
}

// Redeem marks the record used and returns it. Exactly one concurrent caller
// succeeds; the others see [ErrResetUsed]. The used record keeps its remaining TTL,
// and once past expires_at it reports [ErrResetExpired] like an unused record.
func (s *PasswordResetStore) Redeem(ctx context.Context, digest string) (*PasswordResetRecord, error) {
	const maxRetries = 4
	key := s.key(digest)

	for i := 0; i < maxRetries; i++ {
		var redeemed *PasswordResetRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodePasswordResetRecord(data)
			if err != nil {
				return err
			}
			// Expired is reported ahead of used.
			if s.now().Unix() >= record.ExpiresAt {
				return ErrResetExpired
			}
			if record.Used {
				return ErrResetUsed
			}

			ttl, err := tx.PTTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				return ErrResetExpired
			}

			record.Used = true
			updated, err := encodePasswordResetRecord(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			if err != nil {
				return err
			}

			redeemed = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrResetNotFound
			case errors.Is(err, ErrResetUsed), errors.Is(err, ErrResetExpired), errors.Is(err, ErrResetCorrupt):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
			}
		}

		return redeemed, nil
	}

	// Lost every race: someone else redeemed it first.
	return nil, ErrResetUsed
}

// Get returns the record without changing it.
func (s *PasswordResetStore) Get(ctx context.Context, digest string) (*PasswordResetRecord, error) {
	data, err := s.redis.Get(ctx, s.key(digest)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	return decodePasswordResetRecord(data)
}

func encodePasswordResetRecord(record *PasswordResetRecord) ([]byte, error) {
	if record == nil || record.UserID == "" {
		return nil, errors.New("reset record requires user id")
	}
	if len(record.UserID) > 65535 {
		return nil, errors.New("reset record user id too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(resetRecordVersionV1)
	if record.Used {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodePasswordResetRecord(data []byte) (*PasswordResetRecord, error) {
	record, err := readPasswordResetRecord(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResetCorrupt, err)
	}
	return record, nil
}

func readPasswordResetRecord(reader *bytes.Reader) (*PasswordResetRecord, error) {
	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetRecordVersionV1 {
		return nil, errors.New("invalid reset record version")
	}

	used, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if used > 1 {
		return nil, errors.New("invalid used flag")
	}

	record := &PasswordResetRecord{Used: used == 1}
	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}
	if userIDLen == 0 {
		return nil, errors.New("empty user id")
	}
	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes")
	}
	return record, nil
}
