package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"

	"github.com/alinasr783/connect-share/session"
)

var hsKey = []byte("0123456789abcdef0123456789abcdef")

func doctor() *session.Session {
	return &session.Session{
		ID:    "u-1",
		Email: "doc@example.com",
		Role:  session.RoleAuthenticated,
		Metadata: &session.Metadata{
			FullName: "Dr. One",
			UserType: session.UserTypeDoctor,
			Status:   session.StatusActive,
		},
	}
}

func TestIssueParseRoundTrip(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsKey, Issuer: "connectshare"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, exp, err := m.Issue(doctor(), "sid-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}

	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.SessionID != "sid-1" {
		t.Fatalf("session id = %q", claims.SessionID)
	}

	got := claims.Session()
	want := doctor()
	if got.ID != want.ID || got.Email != want.Email || got.Role != want.Role {
		t.Fatalf("session = %+v", got)
	}
	if *got.Metadata != *want.Metadata {
		t.Fatalf("metadata = %+v, want %+v", *got.Metadata, *want.Metadata)
	}
}

func TestParseExpired(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsKey})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	base := time.Now()
	m.now = func() time.Time { return base }
	tok, _, err := m.Issue(doctor(), "sid-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := m.Parse(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{
		Role:      session.RoleAuthenticated,
		SessionID: "s1",
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(hsKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Parse(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestParseRejectsAnonymousRole(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsKey})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	claims := Claims{
		Role:      session.RoleAnonymous,
		SessionID: "s1",
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(hsKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestIssuerAndAudienceEnforced(t *testing.T) {
	issuer, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsKey, Issuer: "a", Audience: "portal"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	verifier, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsKey, Issuer: "b", Audience: "portal"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, _, err := issuer.Issue(doctor(), "sid")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Parse(tok); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []Config{
		{AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: hsKey},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsKey, Leeway: time.Hour},
		{AccessTTL: time.Minute, SigningMethod: "rs256", PrivateKey: hsKey},
		{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: []byte("nope")},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestIssueRequiresUserAndSession(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsKey})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, _, err := m.Issue(nil, "sid"); err == nil {
		t.Fatal("expected error for nil session")
	}
	if _, _, err := m.Issue(doctor(), ""); err == nil {
		t.Fatal("expected error for empty session id")
	}
}
