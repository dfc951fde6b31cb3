package portal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	connectshare "github.com/alinasr783/connect-share"
	"github.com/alinasr783/connect-share/baas"
)

// browser is one visitor of the portal: a signed-in device of the auth service
// and the engine that keeps its current user.
type browser struct {
	id      string
	client  *baas.Client
	engine  *connectshare.Engine
	release func()
	cancel  context.CancelFunc
}

func (b *browser) close() {
	b.release()
	b.cancel()
	b.engine.Close()
	b.client.Close()
}

// registry keeps the most recently used browsers. An evicted browser is closed,
// its visitor starts over signed out. Closing happens after the lock is released
// so a slow teardown never stalls other visitors.
type registry struct {
	newBrowser   func(id string) (*browser, error)
	closeBrowser func(*browser)

	mu      sync.Mutex
	cache   *lru.Cache[string, *browser]
	evicted []*browser
}

func newRegistry(size int, newBrowser func(id string) (*browser, error)) (*registry, error) {
	r := &registry{newBrowser: newBrowser, closeBrowser: (*browser).close}
	cache, err := lru.NewWithEvict(size, func(_ string, b *browser) {
		// Runs inside cache calls made under r.mu.
		r.evicted = append(r.evicted, b)
	})
	if err != nil {
		return nil, fmt.Errorf("browser cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// unlock releases r.mu and closes whatever was evicted while it was held.
func (r *registry) unlock() {
	evicted := r.evicted
	r.evicted = nil
	r.mu.Unlock()
	for _, b := range evicted {
		r.closeBrowser(b)
	}
}

// get returns the browser for id. created reports whether a new browser was made,
// in which case its id differs from the one asked for.
func (r *registry) get(id string) (b *browser, created bool, err error) {
	r.mu.Lock()
	defer r.unlock()

	if id != "" {
		if b, ok := r.cache.Get(id); ok {
			return b, false, nil
		}
	}
	b, err = r.newBrowser(uuid.NewString())
	if err != nil {
		return nil, false, err
	}
	r.cache.Add(b.id, b)
	return b, true, nil
}

func (r *registry) engines() []*connectshare.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*connectshare.Engine, 0, r.cache.Len())
	for _, b := range r.cache.Values() {
		out = append(out, b.engine)
	}
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}

func (r *registry) purge() {
	r.mu.Lock()
	defer r.unlock()
	r.cache.Purge()
}

type browserContextKey struct{}

func browserFrom(r *http.Request) *browser {
	b, _ := r.Context().Value(browserContextKey{}).(*browser)
	return b
}

// attach resolves the visitor's browser from the session cookie, creating one
// when the cookie is missing or refers to an evicted browser.
func (p *Portal) attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(p.opts.CookieName); err == nil {
			id = c.Value
		}

		b, created, err := p.browsers.get(id)
		if err != nil {
			p.logger.Error("portal: browser setup failed", slog.String("error", err.Error()))
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     p.opts.CookieName,
				Value:    b.id,
				Path:     "/",
				HttpOnly: true,
				Secure:   p.opts.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), browserContextKey{}, b)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
