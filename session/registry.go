package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no live session exists for a refresh jti.
var ErrSessionNotFound = errors.New("session: not found")

// ErrStoreUnavailable wraps every Redis transport or script failure.
var ErrStoreUnavailable = errors.New("session: store unavailable")

const (
	sessionPrefix     = "session:"
	revokedPrefix     = "revoked:"
	userSessionPrefix = "usersessions:"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusRotated  int64 = 1
)

// KEYS: old session, new session, user index, revoked key for the previous access jti
// ARGV: old refresh jti, new refresh jti, new blob, ttl ms, index value,
//
//	previous access remaining ms (0 skips), previous access exp unix
const rotateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  redis.call("HDEL", KEYS[3], ARGV[1])
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("HDEL", KEYS[3], ARGV[1])
redis.call("SET", KEYS[2], ARGV[3], "PX", ARGV[4])
redis.call("HSET", KEYS[3], ARGV[2], ARGV[5])
redis.call("PEXPIRE", KEYS[3], ARGV[4])
local access_ms = tonumber(ARGV[6])
if access_ms and access_ms > 0 then
  redis.call("SET", KEYS[4], ARGV[7], "PX", access_ms)
end
return 1
`

var rotateLua = redis.NewScript(rotateScript)

// KEYS: user index
// ARGV: now unix ms, session key prefix, revoked key prefix
const revokeAllScript = `
local now_ms = tonumber(ARGV[1])
local entries = redis.call("HGETALL", KEYS[1])
local revoked = 0
for i = 1, #entries, 2 do
  local refresh_jti = entries[i]
  local value = entries[i + 1]
  local session_key = ARGV[2] .. refresh_jti
  local pttl = redis.call("PTTL", session_key)
  if pttl > 0 then
    local exp = math.floor((now_ms + pttl) / 1000)
    redis.call("SET", ARGV[3] .. refresh_jti, exp, "PX", pttl)
    redis.call("DEL", session_key)
    revoked = revoked + 1
  end
  local sep = string.find(value, ":", 1, true)
  if sep then
    local access_jti = string.sub(value, 1, sep - 1)
    local access_exp = tonumber(string.sub(value, sep + 1))
    if access_jti ~= "" and access_exp then
      local remaining = access_exp * 1000 - now_ms
      if remaining > 0 then
        redis.call("SET", ARGV[3] .. access_jti, access_exp, "PX", remaining)
      end
    end
  end
end
redis.call("DEL", KEYS[1])
return revoked
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// Registry is the Redis-backed session and revocation registry.
//
//	Performance: every operation is one round trip (command, MULTI/EXEC or EVALSHA),
//	except DeleteSession which reads the record first to find its user index.
type Registry struct {
	redis redis.UniversalClient
	now   func() time.Time
}

// NewRegistry creates a [Registry]. now may be nil to use time.Now.
func NewRegistry(client redis.UniversalClient, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{redis: client, now: now}
}

func sessionKey(refreshJTI string) string { return sessionPrefix + refreshJTI }

func revokedKey(jti string) string { return revokedPrefix + jti }

func userKey(userID string) string { return userSessionPrefix + userID }

func indexValue(s *Session) string {
	return s.AccessJTI + ":" + strconv.FormatInt(s.AccessExpiresAt, 10)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// CreateSession stores s under its refresh jti with the given TTL and indexes it
// under the owning user.
func (r *Registry) CreateSession(ctx context.Context, s *Session, ttl time.Duration) error {
	if s == nil || s.RefreshJTI == "" {
		return errors.New("session requires refresh jti")
	}
	if ttl <= 0 {
		return errors.New("session ttl must be > 0")
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(s.RefreshJTI), data, ttl)
		pipe.HSet(ctx, userKey(s.UserID), s.RefreshJTI, indexValue(s))
		pipe.PExpire(ctx, userKey(s.UserID), ttl)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// GetSession returns the live session for refreshJTI or [ErrSessionNotFound].
func (r *Registry) GetSession(ctx context.Context, refreshJTI string) (*Session, error) {
	data, err := r.redis.Get(ctx, sessionKey(refreshJTI)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, unavailable(err)
	}

	s, err := Decode(data)
	if err != nil {
		return nil, err
	}
	s.RefreshJTI = refreshJTI
	return s, nil
}

// DeleteSession removes the session and its index entry. Deleting a missing
// session is not an error.
func (r *Registry) DeleteSession(ctx context.Context, refreshJTI string) error {
	s, err := r.GetSession(ctx, refreshJTI)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		if errors.Is(err, ErrSessionCorrupt) {
			if delErr := r.redis.Del(ctx, sessionKey(refreshJTI)).Err(); delErr != nil {
				return unavailable(delErr)
			}
			return nil
		}
		return err
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(refreshJTI))
		pipe.HDel(ctx, userKey(s.UserID), refreshJTI)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Revoke marks jti dead for ttl. The stored value is the expiry timestamp, so the
// entry never outlives the token it shadows. A non-positive ttl is a no-op: the
// token is already expired.
func (r *Registry) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("revoke requires jti")
	}
	if ttl <= 0 {
		return nil
	}
	exp := r.now().Add(ttl).Unix()
	if err := r.redis.Set(ctx, revokedKey(jti), exp, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// IsRevoked reports whether jti has a live revocation entry.
func (r *Registry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.redis.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// Rotate atomically replaces the session keyed by oldRefreshJTI with next. When
// previousAccessJTI is non-empty and still unexpired at previousAccessExp, it is
// revoked in the same script.
//
// Rotate returns [ErrSessionNotFound] when the old session no longer exists; of two
// concurrent rotations of the same session exactly one succeeds.
//
//	Performance: 1 Lua EVALSHA.
func (r *Registry) Rotate(
	ctx context.Context,
	oldRefreshJTI string,
	next *Session,
	ttl time.Duration,
	previousAccessJTI string,
	previousAccessExp int64,
) error {
	if next == nil || next.RefreshJTI == "" || next.RefreshJTI == oldRefreshJTI {
		return errors.New("rotation requires a new refresh jti")
	}
	if ttl <= 0 {
		return errors.New("session ttl must be > 0")
	}
	data, err := Encode(next)
	if err != nil {
		return err
	}

	var accessRemaining int64
	if previousAccessJTI != "" {
		accessRemaining = time.Unix(previousAccessExp, 0).Sub(r.now()).Milliseconds()
		if accessRemaining < 0 {
			accessRemaining = 0
		}
	}

	status, err := rotateLua.Run(
		ctx,
		r.redis,
		[]string{
			sessionKey(oldRefreshJTI),
			sessionKey(next.RefreshJTI),
			userKey(next.UserID),
			revokedKey(previousAccessJTI),
		},
		oldRefreshJTI,
		next.RefreshJTI,
		data,
		ttl.Milliseconds(),
		indexValue(next),
		accessRemaining,
		previousAccessExp,
	).Int64()
	if err != nil {
		return unavailable(err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrSessionNotFound
	default:
		return fmt.Errorf("%w: unknown rotate status %d", ErrStoreUnavailable, status)
	}
}

// RevokeAllForUser ends every indexed session of userID: each refresh jti and its
// latest access jti are revoked until their natural expiry, the sessions are
// deleted and the index is dropped. It returns the number of live sessions ended.
//
//	Performance: 1 Lua EVALSHA, O(sessions for user).
func (r *Registry) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, errors.New("revoke all requires user id")
	}
	n, err := revokeAllLua.Run(
		ctx,
		r.redis,
		[]string{userKey(userID)},
		r.now().UnixMilli(),
		sessionPrefix,
		revokedPrefix,
	).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

// ActiveSessionIDs returns refresh jtis of the user's sessions that still exist.
// Stale index entries are skipped, not repaired.
func (r *Registry) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.redis.HKeys(ctx, userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	pipe := r.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Exists(ctx, sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, unavailable(err)
	}

	live := make([]string, 0, len(ids))
	for i, cmd := range cmds {
		if cmd.Val() > 0 {
			live = append(live, ids[i])
		}
	}
	return live, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (r *Registry) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), unavailable(err)
	}
	return time.Since(start), nil
}
