// Package portal serves the clinic-rental web portal. Every visitor gets a
// browser: an auth-service client and an engine keeping the visitor's current
// user, mounted for as long as the browser lives. Pages are guarded by the
// authentication and role gates.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	connectshare "github.com/alinasr783/connect-share"
	"github.com/alinasr783/connect-share/baas"
	"github.com/alinasr783/connect-share/guard"
	"github.com/alinasr783/connect-share/metrics/export/prometheus"
	"github.com/alinasr783/connect-share/middleware"
	"github.com/alinasr783/connect-share/password"
	"github.com/alinasr783/connect-share/session"
)

// Options configures a [Portal].
type Options struct {
	Backend *baas.Backend
	Engine  connectshare.Config
	Logger  *slog.Logger
	// AuditSink receives the audit events of every browser engine.
	AuditSink connectshare.AuditSink

	MaxSessions  int
	CookieName   string
	CookieSecure bool
	PendingWait  time.Duration
	// SettleTimeout bounds how long sign-in and sign-out wait for the engine to
	// observe the new auth state before redirecting.
	SettleTimeout time.Duration
}

// Portal is the web portal.
type Portal struct {
	opts     Options
	logger   *slog.Logger
	browsers *registry
	guards   middleware.Options
	exporter *prometheus.Exporter
}

// New creates a portal. Close releases every browser.
func New(opts Options) (*Portal, error) {
	if opts.Backend == nil {
		return nil, errors.New("portal: backend required")
	}
	if err := opts.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("portal: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1024
	}
	if opts.CookieName == "" {
		opts.CookieName = "cs_session"
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = 2 * time.Second
	}

	p := &Portal{
		opts:   opts,
		logger: opts.Logger,
		guards: middleware.Options{
			Routes:      guard.DefaultRoutes(),
			Homes:       guard.DefaultHomes(),
			PendingWait: opts.PendingWait,
		},
	}

	browsers, err := newRegistry(opts.MaxSessions, p.newBrowser)
	if err != nil {
		return nil, err
	}
	p.browsers = browsers
	p.exporter = prometheus.NewExporterFunc(p.metricsSources)
	return p, nil
}

func (p *Portal) newBrowser(id string) (*browser, error) {
	client := p.opts.Backend.NewClient()
	builder := connectshare.New().
		WithConfig(p.opts.Engine).
		WithRemote(client).
		WithLogger(p.logger.With(slog.String("browser", id)))
	if p.opts.AuditSink != nil {
		builder = builder.WithAuditSink(p.opts.AuditSink)
	}
	engine, err := builder.Build()
	if err != nil {
		client.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := engine.Start(ctx); err != nil {
		cancel()
		engine.Close()
		client.Close()
		return nil, err
	}

	return &browser{
		id:      id,
		client:  client,
		engine:  engine,
		release: engine.Mount(ctx),
		cancel:  cancel,
	}, nil
}

// Sessions returns the number of live browsers.
func (p *Portal) Sessions() int {
	return p.browsers.len()
}

// Engines returns the engines of the live browsers.
func (p *Portal) Engines() []*connectshare.Engine {
	return p.browsers.engines()
}

func (p *Portal) metricsSources() []prometheus.MetricsSource {
	engines := p.browsers.engines()
	out := make([]prometheus.MetricsSource, len(engines))
	for i, e := range engines {
		out[i] = e
	}
	return out
}

// Close tears down every browser.
func (p *Portal) Close() {
	p.browsers.purge()
}

// Handler returns the portal router.
func (p *Portal) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", p.exporter.Handler())

	r.Group(func(r chi.Router) {
		r.Use(p.attach)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
		})
		r.Get("/login", p.loginForm)
		r.Post("/login", p.login)
		r.Get("/signup", p.signupForm)
		r.Post("/signup", p.signup)
		r.Post("/logout", p.logout)
		r.Post("/focus", p.focus)

		src := middleware.UserSourceFunc(p.userSource)
		r.With(middleware.RouteDashboard(src, p.guards)).Get("/dashboard", p.home("Dashboard"))
		r.With(middleware.RequireRoleFunc(src, connectshare.UserTypeProvider, p.guards)).Get("/provider", p.home("Your clinics"))
		r.With(middleware.RequireRoleFunc(src, connectshare.UserTypeDoctor, p.guards)).Get("/doctor", p.home("Find a clinic"))
		r.With(middleware.RequireRoleFunc(src, connectshare.UserTypeAdmin, p.guards)).Get("/admin", p.home("Administration"))
		r.With(middleware.RequireAuthenticatedFunc(src, p.guards)).Get("/account", p.account)
	})
	return r
}

func (p *Portal) userSource(r *http.Request) middleware.UserSource {
	b := browserFrom(r)
	if b == nil {
		return nil
	}
	return b.engine
}

func (p *Portal) loginForm(w http.ResponseWriter, r *http.Request) {
	if st := browserFrom(r).engine.CurrentUser(r.Context()); st.IsAuthenticated {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	p.render(w, http.StatusOK, "login", page{Title: "Sign in"})
}

func (p *Portal) login(w http.ResponseWriter, r *http.Request) {
	b := browserFrom(r)
	email := strings.TrimSpace(r.FormValue("email"))

	s, err := b.client.SignInWithPassword(r.Context(), email, r.FormValue("password"))
	if err != nil {
		status, msg := http.StatusInternalServerError, "Sign in is unavailable right now."
		switch {
		case errors.Is(err, baas.ErrInvalidCredentials):
			status, msg = http.StatusUnauthorized, "Invalid email or password."
		case errors.Is(err, baas.ErrThrottled):
			status, msg = http.StatusTooManyRequests, "Too many attempts. Try again later."
		default:
			p.logger.Error("portal: sign in failed", slog.String("error", err.Error()))
		}
		p.render(w, status, "login", page{Title: "Sign in", Error: msg, Email: email})
		return
	}

	p.awaitUser(r.Context(), b.engine, s.User.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (p *Portal) signupForm(w http.ResponseWriter, _ *http.Request) {
	p.render(w, http.StatusOK, "signup", page{Title: "Create an account"})
}

func (p *Portal) signup(w http.ResponseWriter, r *http.Request) {
	b := browserFrom(r)
	params := baas.SignUpParams{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		FullName: strings.TrimSpace(r.FormValue("full_name")),
		UserType: session.UserType(r.FormValue("user_type")),
	}
	// Administrators are provisioned from the command line.
	if params.UserType == session.UserTypeAdmin {
		params.UserType = ""
	}

	s, err := b.client.SignUp(r.Context(), params)
	if err != nil {
		data := page{Title: "Create an account", Email: params.Email, FullName: params.FullName}
		switch {
		case errors.Is(err, baas.ErrEmailTaken):
			data.Error = "That email is already registered."
			p.render(w, http.StatusConflict, "signup", data)
		case errors.Is(err, baas.ErrInvalidProfile):
			data.Error = "Choose whether you are a clinic provider or a doctor."
			p.render(w, http.StatusBadRequest, "signup", data)
		case errors.Is(err, password.ErrTooShort):
			data.Error = fmt.Sprintf("Passwords need at least %d characters.", password.MinLength)
			p.render(w, http.StatusBadRequest, "signup", data)
		default:
			p.logger.Error("portal: sign up failed", slog.String("error", err.Error()))
			data.Error = "Sign up is unavailable right now."
			p.render(w, http.StatusInternalServerError, "signup", data)
		}
		return
	}

	p.awaitUser(r.Context(), b.engine, s.User.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (p *Portal) logout(w http.ResponseWriter, r *http.Request) {
	b := browserFrom(r)
	if err := b.client.SignOut(r.Context()); err != nil {
		p.logger.Warn("portal: sign out revocation failed", slog.String("error", err.Error()))
	}
	p.awaitUser(r.Context(), b.engine, "")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// focus is called by the page when the tab regains focus.
func (p *Portal) focus(w http.ResponseWriter, r *http.Request) {
	browserFrom(r).engine.Focus(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (p *Portal) home(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, _ := middleware.UserFromContext(r.Context())
		p.render(w, http.StatusOK, "home", pageFor(title, st))
	}
}

func (p *Portal) account(w http.ResponseWriter, r *http.Request) {
	st, _ := middleware.UserFromContext(r.Context())
	p.render(w, http.StatusOK, "account", pageFor("Account", st))
}

// awaitUser waits until the engine's listener has applied the auth transition
// that left wantID signed in, or signed out when wantID is empty.
func (p *Portal) awaitUser(ctx context.Context, e *connectshare.Engine, wantID string) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.SettleTimeout)
	defer cancel()

	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		st := e.CurrentUser(ctx)
		if !st.IsPending {
			if wantID == "" && !st.IsAuthenticated {
				return
			}
			if wantID != "" && st.User != nil && st.User.ID == wantID {
				return
			}
		}
		select {
		case <-ctx.Done():
			p.logger.Warn("portal: auth state did not settle", slog.String("want_user", wantID))
			return
		case <-tick.C:
		}
	}
}
