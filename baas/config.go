package baas

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/alinasr783/connect-share/password"
	"github.com/alinasr783/connect-share/session"
)

// Config configures a [Backend].
type Config struct {
	// KeyPrefix namespaces every Redis key and channel.
	KeyPrefix string
	// AccessTTL is the access-token lifetime.
	AccessTTL time.Duration
	// RefreshTTL is the sliding refresh-token lifetime.
	RefreshTTL time.Duration
	// SigningKey is the HS256 access-token key, at least 32 bytes.
	SigningKey []byte
	Issuer     string
	Password   password.Config
	// MaxSignInFailures is how many failed sign-ins an email gets per
	// SignInWindow. Zero disables throttling.
	MaxSignInFailures int
	SignInWindow      time.Duration
	// DefaultStatus is the status of new accounts.
	DefaultStatus session.AccountStatus
	Logger        *slog.Logger
}

// DefaultConfig returns the service defaults. SigningKey must still be set.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:  "cs",
		AccessTTL:  time.Hour,
		RefreshTTL: 30 * 24 * time.Hour,
		Issuer:     "connectshare",
		Password:   password.DefaultConfig(),

		MaxSignInFailures: 5,
		SignInWindow:      15 * time.Minute,

		DefaultStatus: session.StatusActive,
	}
}

func (c *Config) validate() error {
	c.KeyPrefix = strings.TrimSpace(c.KeyPrefix)
	if c.KeyPrefix == "" {
		return errors.New("baas KeyPrefix is required")
	}
	if c.AccessTTL <= 0 {
		return errors.New("baas AccessTTL must be > 0")
	}
	if c.RefreshTTL < c.AccessTTL {
		return errors.New("baas RefreshTTL must be >= AccessTTL")
	}
	if c.MaxSignInFailures < 0 {
		return errors.New("baas MaxSignInFailures must be >= 0")
	}
	if c.MaxSignInFailures > 0 && c.SignInWindow <= 0 {
		return errors.New("baas SignInWindow must be > 0 when throttling")
	}
	if c.DefaultStatus == "" {
		c.DefaultStatus = session.StatusActive
	}
	if !c.DefaultStatus.Valid() {
		return errors.New("baas DefaultStatus is not a known status")
	}
	return nil
}
