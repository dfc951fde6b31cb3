package guard

import (
	connectshare "github.com/alinasr783/connect-share"
)

// Action is what a gate asks the caller to do.
type Action uint8

const (
	// ActionLoading renders a loading indicator and navigates nowhere.
	ActionLoading Action = iota
	// ActionRender renders the protected content.
	ActionRender
	// ActionRedirect navigates to Decision.To.
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionLoading:
		return "loading"
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is a navigation intent. Gates return decisions; a [Runner] or the HTTP
// middleware executes them.
type Decision struct {
	Action Action
	To     string
	// Replace asks for the current history entry to be replaced instead of a new
	// one pushed.
	Replace bool
}

// Loading returns the loading decision.
func Loading() Decision { return Decision{Action: ActionLoading} }

// Render returns the render decision.
func Render() Decision { return Decision{Action: ActionRender} }

// Redirect returns a redirect to path.
func Redirect(to string, replace bool) Decision {
	return Decision{Action: ActionRedirect, To: to, Replace: replace}
}

func (d Decision) String() string {
	if d.Action != ActionRedirect {
		return d.Action.String()
	}
	if d.Replace {
		return "redirect(replace) " + d.To
	}
	return "redirect " + d.To
}

// Routes are the destinations the authentication gate needs.
type Routes struct {
	Login string
}

// DefaultRoutes returns the portal routes.
func DefaultRoutes() Routes {
	return Routes{Login: "/login"}
}

// EvaluateAuth is the authentication gate: pending renders loading, a signed-in
// user renders, anyone else is sent to the login route with a new history entry.
func EvaluateAuth(st connectshare.UserState, routes Routes) Decision {
	switch {
	case st.IsPending:
		return Loading()
	case st.IsAuthenticated:
		return Render()
	default:
		return Redirect(routes.Login, false)
	}
}

// EvaluateRole is the role gate. A user whose type matches required is rendered;
// any other present user is sent to the home of their own type, and an absent
// user to the login route. Presence alone decides; the session role is not
// consulted.
func EvaluateRole(st connectshare.UserState, required connectshare.UserType, homes *Homes) Decision {
	if homes == nil {
		homes = DefaultHomes()
	}
	if st.IsPending {
		return Loading()
	}
	if st.User == nil {
		return Redirect(homes.Login(), true)
	}
	ut := st.User.UserType()
	if ut == required {
		return Render()
	}
	return Redirect(homes.HomeFor(ut), true)
}

// EvaluateDashboard routes the generic dashboard: users whose type has a home of
// its own are sent there, every other present user stays.
func EvaluateDashboard(st connectshare.UserState, homes *Homes) Decision {
	if homes == nil {
		homes = DefaultHomes()
	}
	if st.IsPending {
		return Loading()
	}
	if st.User == nil {
		return Redirect(homes.Login(), true)
	}
	home := homes.HomeFor(st.User.UserType())
	if home == homes.Fallback() {
		return Render()
	}
	return Redirect(home, true)
}
