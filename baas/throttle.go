package baas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// signInThrottle counts failed sign-ins per email in fixed windows. A zero
// limit disables it.
type signInThrottle struct {
	rdb    redis.UniversalClient
	keys   keyspace
	limit  int
	window time.Duration
}

// check reports ErrThrottled while email has used up its failures for the
// current window.
func (t *signInThrottle) check(ctx context.Context, email string) error {
	if t.limit <= 0 {
		return nil
	}
	count, err := t.rdb.Get(ctx, t.keys.signInFailures(email)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= int64(t.limit) {
		return ErrThrottled
	}
	return nil
}

// fail records a failed sign-in.
func (t *signInThrottle) fail(ctx context.Context, email string) error {
	if t.limit <= 0 {
		return nil
	}
	key := t.keys.signInFailures(email)
	count, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// The window starts with its first failure.
	if count == 1 {
		if err := t.rdb.Expire(ctx, key, t.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// reset clears the failures of email after a successful sign-in.
func (t *signInThrottle) reset(ctx context.Context, email string) error {
	if t.limit <= 0 {
		return nil
	}
	if err := t.rdb.Del(ctx, t.keys.signInFailures(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
