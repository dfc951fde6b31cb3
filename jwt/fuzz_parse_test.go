package jwt

import (
	"testing"
	"time"

	"github.com/alinasr783/connect-share/session"
)

func fuzzManager(f *testing.F, key string) *Manager {
	f.Helper()
	mgr, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte(key),
		Issuer:        "connectshare",
	})
	if err != nil {
		f.Fatal(err)
	}
	return mgr
}

// FuzzParse checks that Parse never panics and that whatever it accepts names a
// user, a session and an authenticated role with a known user type.
func FuzzParse(f *testing.F) {
	mgr := fuzzManager(f, "0123456789abcdef0123456789abcdef")
	other := fuzzManager(f, "fedcba9876543210fedcba9876543210")

	user := &session.Session{
		ID:    "u1",
		Email: "doc@example.com",
		Role:  session.RoleAuthenticated,
		Metadata: &session.Metadata{
			FullName: "Dr. Rana",
			UserType: session.UserTypeDoctor,
			Status:   session.StatusActive,
		},
	}
	for _, m := range []*Manager{mgr, other} {
		tok, _, err := m.Issue(user, "s1")
		if err != nil {
			f.Fatal(err)
		}
		f.Add(tok)
		f.Add(tok[:len(tok)-2])
	}
	f.Add("")
	f.Add("..")
	f.Add("eyJhbGciOiJub25lIn0.eyJzdWIiOiJ1MSJ9.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.Parse(input)
		if err != nil {
			return
		}
		if claims.Subject == "" || claims.SessionID == "" {
			t.Fatalf("accepted token without subject or session: %+v", claims)
		}
		if u := claims.Session(); u.ID != claims.Subject {
			t.Fatalf("session id %q does not match subject %q", u.ID, claims.Subject)
		}
	})
}
