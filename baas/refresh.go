package baas

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

// rotateRefreshScript swaps the stored refresh hash for the next one. A hash
// mismatch is treated as token reuse and revokes the session.
const rotateRefreshScript = `
local key = KEYS[1]
local session_id = ARGV[1]
local provided_hash = ARGV[2]
local next_hash = ARGV[3]
local now_unix = tonumber(ARGV[4])
local ttl_sec = tonumber(ARGV[5])
local sessions_prefix = ARGV[6]

local data = redis.call("HMGET", key, "user_id", "hash", "expires_at")
local user_id = data[1]
if not user_id then
  return {0, ""}
end
local sessions_key = sessions_prefix .. user_id

local expires_at = tonumber(data[3] or "0")
if expires_at <= now_unix then
  redis.call("DEL", key)
  redis.call("SREM", sessions_key, session_id)
  return {1, user_id}
end

if data[2] ~= provided_hash then
  redis.call("DEL", key)
  redis.call("SREM", sessions_key, session_id)
  return {2, user_id}
end

redis.call("HSET", key, "hash", next_hash, "expires_at", tostring(now_unix + ttl_sec))
redis.call("EXPIRE", key, ttl_sec)
return {3, user_id}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// refreshStore persists refresh tokens as hashes keyed by session id. Only the
// SHA-256 of the secret part is stored.
type refreshStore struct {
	rdb  redis.UniversalClient
	keys keyspace
	ttl  time.Duration
	now  func() time.Time
}

// refreshToken is "<session id>.<secret>".
type refreshToken struct {
	sessionID string
	secret    string
}

func (t refreshToken) String() string {
	return t.sessionID + "." + t.secret
}

func parseRefreshToken(s string) (refreshToken, error) {
	sid, secret, ok := strings.Cut(s, ".")
	if !ok || secret == "" {
		return refreshToken{}, ErrInvalidRefresh
	}
	if _, err := uuid.Parse(sid); err != nil {
		return refreshToken{}, ErrInvalidRefresh
	}
	return refreshToken{sessionID: sid, secret: secret}, nil
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// create starts a new session for userID.
func (s *refreshStore) create(ctx context.Context, userID string) (refreshToken, error) {
	secret, err := newSecret()
	if err != nil {
		return refreshToken{}, err
	}
	tok := refreshToken{sessionID: uuid.NewString(), secret: secret}
	key := s.keys.refresh(tok.sessionID)
	expiresAt := s.now().Add(s.ttl).Unix()

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "user_id", userID, "hash", hashSecret(secret), "expires_at", expiresAt)
		pipe.Expire(ctx, key, s.ttl)
		pipe.SAdd(ctx, s.keys.userSessions(userID), tok.sessionID)
		return nil
	})
	if err != nil {
		return refreshToken{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tok, nil
}

// rotate exchanges tok for a new token of the same session and returns the
// session's user id.
func (s *refreshStore) rotate(ctx context.Context, tok refreshToken) (refreshToken, string, error) {
	secret, err := newSecret()
	if err != nil {
		return refreshToken{}, "", err
	}

	res, err := rotateRefreshLua.Run(ctx, s.rdb,
		[]string{s.keys.refresh(tok.sessionID)},
		tok.sessionID,
		hashSecret(tok.secret),
		hashSecret(secret),
		s.now().Unix(),
		int64(s.ttl/time.Second),
		s.keys.userSessions(""),
	).Slice()
	if err != nil {
		return refreshToken{}, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 {
		return refreshToken{}, "", fmt.Errorf("%w: unexpected rotate result", ErrUnavailable)
	}
	status, _ := res[0].(int64)
	userID, _ := res[1].(string)

	switch status {
	case rotateStatusRotated:
		return refreshToken{sessionID: tok.sessionID, secret: secret}, userID, nil
	case rotateStatusNotFound, rotateStatusExpired:
		return refreshToken{}, userID, ErrInvalidRefresh
	case rotateStatusMismatch:
		return refreshToken{}, userID, fmt.Errorf("%w: reuse detected, session revoked", ErrInvalidRefresh)
	default:
		return refreshToken{}, "", fmt.Errorf("%w: unknown rotate status %d", ErrUnavailable, status)
	}
}

// revoke deletes sessionID. Revoking an unknown session is not an error.
func (s *refreshStore) revoke(ctx context.Context, sessionID string) error {
	key := s.keys.refresh(sessionID)
	userID, err := s.rdb.HGet(ctx, key, "user_id").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, s.keys.userSessions(userID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// active reports whether sessionID still exists.
func (s *refreshStore) active(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.keys.refresh(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}
