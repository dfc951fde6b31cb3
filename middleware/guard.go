package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	connectshare "github.com/alinasr783/connect-share"
	"github.com/alinasr783/connect-share/guard"
)

// UserSource resolves the current user for a request.
//
//	Implemented by: connectshare.Engine
type UserSource interface {
	AwaitUser(ctx context.Context) connectshare.UserState
}

// UserSourceFunc picks the source per request, e.g. per browser session.
type UserSourceFunc func(r *http.Request) UserSource

// Options configures the gate middleware.
type Options struct {
	Routes guard.Routes
	Homes  *guard.Homes
	// PendingWait bounds how long a request waits for a pending user before the
	// loading response is served.
	PendingWait time.Duration
	// Loading serves the loading response. Defaults to a short text body.
	Loading http.Handler
	// RefreshAfter is the Refresh header delay sent with the loading response.
	RefreshAfter time.Duration
}

func (o Options) withDefaults() Options {
	if o.Routes.Login == "" {
		o.Routes = guard.DefaultRoutes()
	}
	if o.Homes == nil {
		o.Homes = guard.DefaultHomes()
	}
	if o.PendingWait <= 0 {
		o.PendingWait = 2 * time.Second
	}
	if o.RefreshAfter <= 0 {
		o.RefreshAfter = time.Second
	}
	if o.Loading == nil {
		o.Loading = http.HandlerFunc(defaultLoading)
	}
	return o
}

type userStateContextKey struct{}

// UserFromContext returns the user state the gate resolved for this request.
func UserFromContext(ctx context.Context) (connectshare.UserState, bool) {
	st, ok := ctx.Value(userStateContextKey{}).(connectshare.UserState)
	return st, ok
}

// RequireAuthenticated admits signed-in users and sends everyone else to the
// login route.
func RequireAuthenticated(src UserSource, opts Options) func(http.Handler) http.Handler {
	return RequireAuthenticatedFunc(staticSource(src), opts)
}

// RequireAuthenticatedFunc is RequireAuthenticated with a per-request source.
func RequireAuthenticatedFunc(src UserSourceFunc, opts Options) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return gate(src, opts, func(st connectshare.UserState) guard.Decision {
		return guard.EvaluateAuth(st, opts.Routes)
	})
}

// RequireRole admits users of type role and sends every other user to their own
// home.
func RequireRole(src UserSource, role connectshare.UserType, opts Options) func(http.Handler) http.Handler {
	return RequireRoleFunc(staticSource(src), role, opts)
}

// RequireRoleFunc is RequireRole with a per-request source.
func RequireRoleFunc(src UserSourceFunc, role connectshare.UserType, opts Options) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return gate(src, opts, func(st connectshare.UserState) guard.Decision {
		return guard.EvaluateRole(st, role, opts.Homes)
	})
}

// RouteDashboard sends users to the home of their type and renders the generic
// dashboard for the rest.
func RouteDashboard(src UserSourceFunc, opts Options) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return gate(src, opts, func(st connectshare.UserState) guard.Decision {
		return guard.EvaluateDashboard(st, opts.Homes)
	})
}

func staticSource(src UserSource) UserSourceFunc {
	return func(*http.Request) UserSource { return src }
}

func gate(src UserSourceFunc, opts Options, decide func(connectshare.UserState) guard.Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := connectshare.WithRoute(r.Context(), r.URL.Path)
			ctx = connectshare.WithClientIP(ctx, clientIP(r))

			var st connectshare.UserState
			if s := resolve(src, r); s != nil {
				wctx, cancel := context.WithTimeout(ctx, opts.PendingWait)
				st = s.AwaitUser(wctx)
				cancel()
			}

			d := decide(st)
			switch d.Action {
			case guard.ActionRender:
				ctx = context.WithValue(ctx, userStateContextKey{}, st)
				next.ServeHTTP(w, r.WithContext(ctx))
			case guard.ActionLoading:
				secs := int(opts.RefreshAfter / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Refresh", strconv.Itoa(secs))
				w.Header().Set("Cache-Control", "no-store")
				opts.Loading.ServeHTTP(w, r.WithContext(ctx))
			default:
				code := http.StatusFound
				if d.Replace {
					code = http.StatusSeeOther
				}
				http.Redirect(w, r, d.To, code)
			}
		})
	}
}

func resolve(src UserSourceFunc, r *http.Request) UserSource {
	if src == nil {
		return nil
	}
	return src(r)
}

func defaultLoading(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("loading\n"))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
