package baas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	connectshare "github.com/alinasr783/connect-share"
	"github.com/alinasr783/connect-share/jwt"
	"github.com/alinasr783/connect-share/password"
	"github.com/alinasr783/connect-share/session"
)

// ProfileTable is the only table with realtime support.
const ProfileTable = "users"

type keyspace struct {
	prefix string
}

func (k keyspace) profile(id string) string      { return k.prefix + ":users:" + id }
func (k keyspace) email(email string) string     { return k.prefix + ":email:" + email }
func (k keyspace) credential(id string) string   { return k.prefix + ":cred:" + id }
func (k keyspace) refresh(sid string) string     { return k.prefix + ":rt:" + sid }
func (k keyspace) userSessions(id string) string { return k.prefix + ":us:" + id }
func (k keyspace) signInFailures(email string) string {
	return k.prefix + ":signin:" + email
}
func (k keyspace) channel(table string, f connectshare.RowFilter) string {
	return k.prefix + ":realtime:" + table + ":" + f.String()
}

const signUpScript = `
if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[2], "id", ARGV[1], "email", ARGV[2], "full_name", ARGV[3], "user_type", ARGV[4], "status", ARGV[5], "avatar", "")
redis.call("SET", KEYS[3], ARGV[6])
return 1
`

var signUpLua = redis.NewScript(signUpScript)

// updateProfileScript applies field/value pairs to an existing profile and returns
// the row before and after.
const updateProfileScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return false
end
local before = redis.call("HGETALL", KEYS[1])
if #ARGV > 0 then
  redis.call("HSET", KEYS[1], unpack(ARGV))
end
local after = redis.call("HGETALL", KEYS[1])
return {before, after}
`

var updateProfileLua = redis.NewScript(updateProfileScript)

// Backend is the Redis-backed auth and data service: credentials, sessions, the
// users profile table and its realtime feed. It is shared by every [Client].
type Backend struct {
	rdb     redis.UniversalClient
	keys    keyspace
	tokens  *jwt.Manager
	hasher  *password.Hasher
	refresh *refreshStore
	limiter *signInThrottle
	status  session.AccountStatus
	logger  *slog.Logger
	now     func() time.Time
}

// NewBackend validates cfg and returns a [Backend] over rdb.
func NewBackend(rdb redis.UniversalClient, cfg Config) (*Backend, error) {
	if rdb == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    cfg.SigningKey,
		Issuer:        cfg.Issuer,
		Leeway:        5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("baas: %w", err)
	}
	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("baas: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	keys := keyspace{prefix: cfg.KeyPrefix}
	b := &Backend{
		rdb:    rdb,
		keys:   keys,
		tokens: tokens,
		hasher: hasher,
		status: cfg.DefaultStatus,
		logger: logger.With("component", "baas"),
		now:    time.Now,
	}
	b.refresh = &refreshStore{rdb: rdb, keys: keys, ttl: cfg.RefreshTTL, now: b.nowFunc}
	b.limiter = &signInThrottle{rdb: rdb, keys: keys, limit: cfg.MaxSignInFailures, window: cfg.SignInWindow}
	return b, nil
}

func (b *Backend) nowFunc() time.Time { return b.now() }

// SignUpParams are the sign-up form fields.
type SignUpParams struct {
	Email    string
	Password string
	FullName string
	UserType session.UserType
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (b *Backend) signUp(ctx context.Context, p SignUpParams) (*connectshare.AuthSession, error) {
	email := normalizeEmail(p.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email", ErrInvalidProfile)
	}
	if !p.UserType.Valid() {
		return nil, fmt.Errorf("%w: user type %q", ErrInvalidProfile, p.UserType)
	}
	hash, err := b.hasher.Hash(p.Password)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	created, err := signUpLua.Run(ctx, b.rdb,
		[]string{b.keys.email(email), b.keys.profile(id), b.keys.credential(id)},
		id, email, strings.TrimSpace(p.FullName), string(p.UserType), string(b.status), hash,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if created == 0 {
		return nil, ErrEmailTaken
	}

	b.logger.Info("baas: user signed up", "user_id", id, "user_type", string(p.UserType))
	return b.startSession(ctx, id)
}

func (b *Backend) signIn(ctx context.Context, email, pw string) (*connectshare.AuthSession, error) {
	email = normalizeEmail(email)
	if err := b.limiter.check(ctx, email); err != nil {
		return nil, err
	}

	s, err := b.verifyCredentials(ctx, email, pw)
	if errors.Is(err, ErrInvalidCredentials) {
		if ferr := b.limiter.fail(ctx, email); ferr != nil {
			b.logger.Warn("baas: sign-in throttle update failed", "error", ferr)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if rerr := b.limiter.reset(ctx, email); rerr != nil {
		b.logger.Warn("baas: sign-in throttle reset failed", "error", rerr)
	}
	return s, nil
}

func (b *Backend) verifyCredentials(ctx context.Context, email, pw string) (*connectshare.AuthSession, error) {
	id, err := b.rdb.Get(ctx, b.keys.email(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	hash, err := b.rdb.Get(ctx, b.keys.credential(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ok, err := b.hasher.Verify(pw, hash)
	if err != nil {
		b.logger.Warn("baas: stored credential unreadable", "user_id", id, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if stale, _ := b.hasher.NeedsRehash(hash); stale {
		if next, err := b.hasher.Hash(pw); err == nil {
			if err := b.rdb.Set(ctx, b.keys.credential(id), next, 0).Err(); err != nil {
				b.logger.Warn("baas: credential rehash failed", "user_id", id, "error", err)
			}
		}
	}

	return b.startSession(ctx, id)
}

// startSession opens a refresh session for id and issues its first access token.
func (b *Backend) startSession(ctx context.Context, id string) (*connectshare.AuthSession, error) {
	tok, err := b.refresh.create(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.issue(ctx, id, tok)
}

func (b *Backend) issue(ctx context.Context, id string, tok refreshToken) (*connectshare.AuthSession, error) {
	row, err := b.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	user := sessionFromRow(row)

	access, exp, err := b.tokens.Issue(user, tok.sessionID)
	if err != nil {
		return nil, err
	}
	return &connectshare.AuthSession{
		AccessToken:  access,
		RefreshToken: tok.String(),
		ExpiresAt:    exp,
		User:         user,
	}, nil
}

func (b *Backend) rotate(ctx context.Context, refresh string) (*connectshare.AuthSession, error) {
	tok, err := parseRefreshToken(refresh)
	if err != nil {
		return nil, err
	}
	next, userID, err := b.refresh.rotate(ctx, tok)
	if err != nil {
		if errors.Is(err, ErrInvalidRefresh) && userID != "" {
			b.logger.Warn("baas: refresh rejected", "user_id", userID, "error", err)
		}
		return nil, err
	}
	return b.issue(ctx, userID, next)
}

func (b *Backend) signOut(ctx context.Context, refresh string) error {
	tok, err := parseRefreshToken(refresh)
	if err != nil {
		return nil
	}
	return b.refresh.revoke(ctx, tok.sessionID)
}

// Verify checks an access token and that its session has not been revoked.
func (b *Backend) Verify(ctx context.Context, accessToken string) (*session.Session, error) {
	claims, err := b.tokens.Parse(accessToken)
	if err != nil {
		return nil, err
	}
	ok, err := b.refresh.active(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSession
	}
	return claims.Session(), nil
}

// LookupUser returns the id registered for email.
func (b *Backend) LookupUser(ctx context.Context, email string) (string, error) {
	id, err := b.rdb.Get(ctx, b.keys.email(normalizeEmail(email))).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return id, nil
}

// Profile reads the profile row of id.
func (b *Backend) Profile(ctx context.Context, id string) (connectshare.ProfileRow, error) {
	fields, err := b.rdb.HGetAll(ctx, b.keys.profile(id)).Result()
	if err != nil {
		return connectshare.ProfileRow{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return connectshare.ProfileRow{}, ErrUserNotFound
	}
	return rowFromFields(fields), nil
}

// ProfileUpdate lists the profile columns to change. Empty fields are left alone.
type ProfileUpdate struct {
	FullName string
	UserType session.UserType
	Status   session.AccountStatus
	Avatar   string
}

func (u ProfileUpdate) pairs() ([]interface{}, error) {
	var out []interface{}
	if u.FullName != "" {
		out = append(out, "full_name", strings.TrimSpace(u.FullName))
	}
	if u.UserType != "" {
		if !u.UserType.Valid() {
			return nil, fmt.Errorf("%w: user type %q", ErrInvalidProfile, u.UserType)
		}
		out = append(out, "user_type", string(u.UserType))
	}
	if u.Status != "" {
		if !u.Status.Valid() {
			return nil, fmt.Errorf("%w: status %q", ErrInvalidProfile, u.Status)
		}
		out = append(out, "status", string(u.Status))
	}
	if u.Avatar != "" {
		out = append(out, "avatar", u.Avatar)
	}
	return out, nil
}

// UpdateProfile updates the profile row of id and publishes an UPDATE on the
// row's realtime channel.
func (b *Backend) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (connectshare.ProfileRow, error) {
	args, err := u.pairs()
	if err != nil {
		return connectshare.ProfileRow{}, err
	}

	res, err := updateProfileLua.Run(ctx, b.rdb, []string{b.keys.profile(id)}, args...).Slice()
	if errors.Is(err, redis.Nil) {
		return connectshare.ProfileRow{}, ErrUserNotFound
	}
	if err != nil {
		return connectshare.ProfileRow{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 {
		return connectshare.ProfileRow{}, fmt.Errorf("%w: unexpected update result", ErrUnavailable)
	}
	before := rowFromFields(flatToMap(res[0]))
	after := rowFromFields(flatToMap(res[1]))

	if err := b.publish(ctx, connectshare.RowUpdate, after, before); err != nil {
		// The row is written; subscribers catch up on their next fetch.
		b.logger.Warn("baas: realtime publish failed", "user_id", id, "error", err)
	}
	return after, nil
}

func flatToMap(v interface{}) map[string]string {
	items, _ := v.([]interface{})
	out := make(map[string]string, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		k, _ := items[i].(string)
		val, _ := items[i+1].(string)
		out[k] = val
	}
	return out
}

func rowFromFields(f map[string]string) connectshare.ProfileRow {
	return connectshare.ProfileRow{
		ID:       f["id"],
		Email:    f["email"],
		FullName: f["full_name"],
		UserType: session.UserType(f["user_type"]),
		Status:   session.AccountStatus(f["status"]),
		Avatar:   f["avatar"],
	}
}

func sessionFromRow(row connectshare.ProfileRow) *session.Session {
	return &session.Session{
		ID:    row.ID,
		Email: row.Email,
		Role:  session.RoleAuthenticated,
		Metadata: &session.Metadata{
			FullName: row.FullName,
			UserType: row.UserType,
			Status:   row.Status,
			Avatar:   row.Avatar,
		},
	}
}
