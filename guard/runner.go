package guard

import (
	"context"
	"errors"
	"sync"

	connectshare "github.com/alinasr783/connect-share"
)

// Navigator performs a navigation.
type Navigator interface {
	Navigate(ctx context.Context, to string, replace bool) error
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(ctx context.Context, to string, replace bool) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, to string, replace bool) error {
	return f(ctx, to, replace)
}

// Runner executes decisions against a [Navigator]. Loading and render decisions
// navigate nowhere.
type Runner struct {
	nav Navigator
}

// NewRunner returns a [Runner] that navigates with nav.
func NewRunner(nav Navigator) (*Runner, error) {
	if nav == nil {
		return nil, errors.New("navigator required")
	}
	return &Runner{nav: nav}, nil
}

// Run executes d.
func (r *Runner) Run(ctx context.Context, d Decision) error {
	if d.Action != ActionRedirect {
		return nil
	}
	if d.To == "" {
		return errors.New("redirect without destination")
	}
	return r.nav.Navigate(ctx, d.To, d.Replace)
}

type authKey struct {
	authenticated bool
	pending       bool
}

// AuthGate is the authentication gate with its navigation effect. The effect runs
// only when the (authenticated, pending) pair differs from the previous
// evaluation, so repeated evaluations of the same state navigate once.
type AuthGate struct {
	routes Routes
	runner *Runner

	mu   sync.Mutex
	prev *authKey
}

// NewAuthGate returns an [AuthGate] that redirects through runner.
func NewAuthGate(routes Routes, runner *Runner) *AuthGate {
	return &AuthGate{routes: routes, runner: runner}
}

// Evaluate decides for st and runs the navigation effect when the gate's inputs
// changed.
func (g *AuthGate) Evaluate(ctx context.Context, st connectshare.UserState) (Decision, error) {
	d := EvaluateAuth(st, g.routes)

	key := authKey{authenticated: st.IsAuthenticated, pending: st.IsPending}
	g.mu.Lock()
	changed := g.prev == nil || *g.prev != key
	g.prev = &key
	g.mu.Unlock()

	if !changed || g.runner == nil {
		return d, nil
	}
	return d, g.runner.Run(ctx, d)
}

// RoleGate is the role gate bound to one required user type.
type RoleGate struct {
	Required connectshare.UserType
	Homes    *Homes
	Runner   *Runner
}

// Evaluate decides for st and runs the redirect, if any.
func (g RoleGate) Evaluate(ctx context.Context, st connectshare.UserState) (Decision, error) {
	d := EvaluateRole(st, g.Required, g.Homes)
	if g.Runner == nil {
		return d, nil
	}
	return d, g.Runner.Run(ctx, d)
}
