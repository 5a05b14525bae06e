package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// CurrentSchemaVersion is the binary layout written by [Encode].
const CurrentSchemaVersion uint8 = 1

// ErrSessionCorrupt reports a stored blob that does not decode.
var ErrSessionCorrupt = errors.New("session: corrupt record")

// Encode serializes s as:
//
//	version(1) | len(1) user_id | len(1) access_jti | issued_at(8) | expires_at(8) | access_expires_at(8)
//
// RefreshJTI is the key and is not repeated in the value.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.UserID == "" {
		return nil, errors.New("userID required")
	}
	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	if len(s.AccessJTI) > 255 {
		return nil, errors.New("accessJTI too long")
	}

	var buf bytes.Buffer
	buf.Grow(3 + len(s.UserID) + len(s.AccessJTI) + 24)

	buf.WriteByte(CurrentSchemaVersion)
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)
	buf.WriteByte(byte(len(s.AccessJTI)))
	buf.WriteString(s.AccessJTI)

	for _, v := range [...]int64{s.IssuedAt, s.ExpiresAt, s.AccessExpiresAt} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode]. Malformed input wraps [ErrSessionCorrupt].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, corrupt(err)
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported session schema version %d", ErrSessionCorrupt, version)
	}

	s := &Session{SchemaVersion: version}

	if s.UserID, err = readShortString(reader); err != nil {
		return nil, corrupt(err)
	}
	if s.UserID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrSessionCorrupt)
	}
	if s.AccessJTI, err = readShortString(reader); err != nil {
		return nil, corrupt(err)
	}

	for _, dst := range [...]*int64{&s.IssuedAt, &s.ExpiresAt, &s.AccessExpiresAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, corrupt(err)
		}
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrSessionCorrupt)
	}

	return s, nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
}
