package baas

import "errors"

var (
	// ErrInvalidCredentials is returned when the email is unknown or the password
	// does not match. The two cases are indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrEmailTaken is returned by sign-up when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNoSession is returned by operations that need a signed-in client.
	ErrNoSession = errors.New("no active session")
	// ErrUnavailable wraps Redis failures.
	ErrUnavailable = errors.New("auth service unavailable")
	// ErrInvalidProfile is returned for profile values outside the allowed sets.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrInvalidRefresh is returned when a refresh token is unknown, expired or
	// reused. A reused token revokes its session.
	ErrInvalidRefresh = errors.New("invalid refresh token")
	// ErrUnsupportedFilter is returned for realtime subscriptions other than the
	// users table filtered by id.
	ErrUnsupportedFilter = errors.New("unsupported realtime filter")
	// ErrThrottled is returned by sign-in after too many failures for one email.
	ErrThrottled = errors.New("too many sign-in attempts")
	// ErrUserNotFound is returned by profile reads and writes for unknown ids.
	ErrUserNotFound = errors.New("user not found")
)
