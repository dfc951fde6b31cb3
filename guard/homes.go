package guard

import (
	"errors"
	"strings"
	"sync"

	connectshare "github.com/alinasr783/connect-share"
)

// Homes maps each user type to its landing route. Types without an entry land on
// the fallback (the generic dashboard). Register entries during initialization,
// then Freeze.
type Homes struct {
	mu       sync.RWMutex
	homes    map[connectshare.UserType]string
	fallback string
	login    string
	frozen   bool
}

// NewHomes returns an empty registry.
func NewHomes(fallback, login string) (*Homes, error) {
	fallback = strings.TrimSpace(fallback)
	login = strings.TrimSpace(login)
	if !strings.HasPrefix(fallback, "/") {
		return nil, errors.New("fallback home must be an absolute path")
	}
	if !strings.HasPrefix(login, "/") {
		return nil, errors.New("login route must be an absolute path")
	}
	return &Homes{
		homes:    make(map[connectshare.UserType]string),
		fallback: fallback,
		login:    login,
	}, nil
}

// DefaultHomes returns the frozen portal table: providers land on /provider,
// doctors on /doctor, everyone else on /dashboard.
func DefaultHomes() *Homes {
	h := &Homes{
		homes: map[connectshare.UserType]string{
			connectshare.UserTypeProvider: "/provider",
			connectshare.UserTypeDoctor:   "/doctor",
		},
		fallback: "/dashboard",
		login:    "/login",
		frozen:   true,
	}
	return h
}

// Register sets the home of t.
func (h *Homes) Register(t connectshare.UserType, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.frozen {
		return errors.New("homes frozen")
	}
	if t == "" {
		return errors.New("user type empty")
	}
	if !t.Valid() {
		return errors.New("unknown user type: " + string(t))
	}
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		return errors.New("home must be an absolute path")
	}
	if _, exists := h.homes[t]; exists {
		return errors.New("home already registered for " + string(t))
	}

	h.homes[t] = path
	return nil
}

// Freeze makes the registry read-only.
func (h *Homes) Freeze() {
	h.mu.Lock()
	h.frozen = true
	h.mu.Unlock()
}

// HomeFor returns the landing route of t.
func (h *Homes) HomeFor(t connectshare.UserType) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if p, ok := h.homes[t]; ok {
		return p
	}
	return h.fallback
}

// Fallback returns the route for user types without a home of their own.
func (h *Homes) Fallback() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fallback
}

// Login returns the route absent users are sent to.
func (h *Homes) Login() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.login
}
