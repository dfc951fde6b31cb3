package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	connectshare "github.com/alinasr783/connect-share"
)

func signedIn(ut connectshare.UserType) connectshare.UserState {
	return connectshare.UserState{
		User: &connectshare.Session{
			ID:    "u-1",
			Email: "a@example.com",
			Role:  "authenticated",
			Metadata: &connectshare.Metadata{
				FullName: "Dr. A",
				UserType: ut,
				Status:   connectshare.StatusActive,
			},
		},
		IsAuthenticated: true,
		IsActive:        true,
		IsDoctor:        ut == connectshare.UserTypeDoctor,
	}
}

func presentWithoutRole(ut connectshare.UserType) connectshare.UserState {
	st := signedIn(ut)
	st.User.Role = ""
	st.IsAuthenticated = false
	return st
}

func TestEvaluateRoleTable(t *testing.T) {
	cases := []struct {
		name     string
		state    connectshare.UserState
		required connectshare.UserType
		want     Decision
	}{
		{"pending", connectshare.UserState{IsPending: true}, connectshare.UserTypeDoctor, Loading()},
		{"doctor on doctor", signedIn(connectshare.UserTypeDoctor), connectshare.UserTypeDoctor, Render()},
		{"provider on doctor", signedIn(connectshare.UserTypeProvider), connectshare.UserTypeDoctor, Redirect("/provider", true)},
		{"doctor on provider", signedIn(connectshare.UserTypeDoctor), connectshare.UserTypeProvider, Redirect("/doctor", true)},
		{"admin on doctor", signedIn(connectshare.UserTypeAdmin), connectshare.UserTypeDoctor, Redirect("/dashboard", true)},
		{"unset type on provider", signedIn(""), connectshare.UserTypeProvider, Redirect("/dashboard", true)},
		{"present user without role or type", presentWithoutRole(""), connectshare.UserTypeProvider, Redirect("/dashboard", true)},
		{"present doctor without role", presentWithoutRole(connectshare.UserTypeDoctor), connectshare.UserTypeDoctor, Render()},
		{"absent user", connectshare.UserState{}, connectshare.UserTypeProvider, Redirect("/login", true)},
		{"fetch error", connectshare.UserState{Error: errors.New("boom")}, connectshare.UserTypeAdmin, Redirect("/login", true)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EvaluateRole(tc.state, tc.required, DefaultHomes()))
		})
	}
}

func TestEvaluateRoleNilHomesUsesDefaults(t *testing.T) {
	d := EvaluateRole(signedIn(connectshare.UserTypeProvider), connectshare.UserTypeDoctor, nil)
	assert.Equal(t, "/provider", d.To)
}

func TestEvaluateAuth(t *testing.T) {
	routes := DefaultRoutes()
	assert.Equal(t, Loading(), EvaluateAuth(connectshare.UserState{IsPending: true}, routes))
	assert.Equal(t, Render(), EvaluateAuth(signedIn(connectshare.UserTypeDoctor), routes))

	d := EvaluateAuth(connectshare.UserState{}, routes)
	assert.Equal(t, ActionRedirect, d.Action)
	assert.Equal(t, "/login", d.To)
	assert.False(t, d.Replace)
}

func TestEvaluateDashboard(t *testing.T) {
	homes := DefaultHomes()
	assert.Equal(t, Redirect("/doctor", true), EvaluateDashboard(signedIn(connectshare.UserTypeDoctor), homes))
	assert.Equal(t, Render(), EvaluateDashboard(signedIn(connectshare.UserTypeAdmin), homes))
	assert.Equal(t, Loading(), EvaluateDashboard(connectshare.UserState{IsPending: true}, homes))
	assert.Equal(t, Redirect("/login", true), EvaluateDashboard(connectshare.UserState{}, homes))
	assert.Equal(t, Render(), EvaluateDashboard(presentWithoutRole(""), homes))
}

type recordingNavigator struct {
	calls []Decision
	err   error
}

func (n *recordingNavigator) Navigate(_ context.Context, to string, replace bool) error {
	n.calls = append(n.calls, Redirect(to, replace))
	return n.err
}

func TestAuthGateNavigatesOncePerStateChange(t *testing.T) {
	nav := &recordingNavigator{}
	runner, err := NewRunner(nav)
	require.NoError(t, err)
	gate := NewAuthGate(DefaultRoutes(), runner)
	ctx := context.Background()

	d, err := gate.Evaluate(ctx, connectshare.UserState{IsPending: true})
	require.NoError(t, err)
	assert.Equal(t, ActionLoading, d.Action)
	assert.Empty(t, nav.calls)

	for i := 0; i < 3; i++ {
		d, err = gate.Evaluate(ctx, connectshare.UserState{})
		require.NoError(t, err)
		assert.Equal(t, ActionRedirect, d.Action)
	}
	require.Len(t, nav.calls, 1)
	assert.Equal(t, Redirect("/login", false), nav.calls[0])
}

func TestAuthGateAuthenticatedNeverNavigates(t *testing.T) {
	nav := &recordingNavigator{}
	runner, err := NewRunner(nav)
	require.NoError(t, err)
	gate := NewAuthGate(DefaultRoutes(), runner)

	for i := 0; i < 3; i++ {
		d, err := gate.Evaluate(context.Background(), signedIn(connectshare.UserTypeProvider))
		require.NoError(t, err)
		assert.Equal(t, ActionRender, d.Action)
	}
	assert.Empty(t, nav.calls)
}

func TestAuthGateSignOutAfterSignInNavigates(t *testing.T) {
	nav := &recordingNavigator{}
	runner, _ := NewRunner(nav)
	gate := NewAuthGate(DefaultRoutes(), runner)
	ctx := context.Background()

	_, _ = gate.Evaluate(ctx, signedIn(connectshare.UserTypeDoctor))
	_, _ = gate.Evaluate(ctx, connectshare.UserState{})
	_, _ = gate.Evaluate(ctx, signedIn(connectshare.UserTypeDoctor))
	_, _ = gate.Evaluate(ctx, connectshare.UserState{})

	assert.Len(t, nav.calls, 2)
}

func TestRunnerPropagatesNavigatorError(t *testing.T) {
	boom := errors.New("boom")
	runner, err := NewRunner(&recordingNavigator{err: boom})
	require.NoError(t, err)

	assert.ErrorIs(t, runner.Run(context.Background(), Redirect("/login", false)), boom)
	assert.NoError(t, runner.Run(context.Background(), Render()))
	assert.Error(t, runner.Run(context.Background(), Redirect("", false)))

	_, err = NewRunner(nil)
	assert.Error(t, err)
}

func TestRoleGateRunsRedirect(t *testing.T) {
	nav := &recordingNavigator{}
	runner, _ := NewRunner(nav)
	gate := RoleGate{Required: connectshare.UserTypeDoctor, Homes: DefaultHomes(), Runner: runner}

	d, err := gate.Evaluate(context.Background(), signedIn(connectshare.UserTypeProvider))
	require.NoError(t, err)
	assert.Equal(t, "/provider", d.To)
	require.Len(t, nav.calls, 1)
	assert.True(t, nav.calls[0].Replace)
}

func TestHomesRegisterAndFreeze(t *testing.T) {
	h, err := NewHomes("/dashboard", "/login")
	require.NoError(t, err)

	require.NoError(t, h.Register(connectshare.UserTypeAdmin, "/admin"))
	assert.Error(t, h.Register(connectshare.UserTypeAdmin, "/admin2"))
	assert.Error(t, h.Register("nurse", "/nurse"))
	assert.Error(t, h.Register(connectshare.UserTypeDoctor, "doctor"))

	h.Freeze()
	assert.Error(t, h.Register(connectshare.UserTypeDoctor, "/doctor"))

	assert.Equal(t, "/admin", h.HomeFor(connectshare.UserTypeAdmin))
	assert.Equal(t, "/dashboard", h.HomeFor(connectshare.UserTypeDoctor))
	assert.Equal(t, Redirect("/admin", true), EvaluateRole(signedIn(connectshare.UserTypeAdmin), connectshare.UserTypeDoctor, h))

	_, err = NewHomes("dashboard", "/login")
	assert.Error(t, err)
}

func TestDefaultHomesIsFrozen(t *testing.T) {
	assert.Error(t, DefaultHomes().Register(connectshare.UserTypeAdmin, "/admin"))
}
