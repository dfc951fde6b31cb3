package connectshare

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alinasr783/connect-share/session"
)

// fakeRemote is an in-memory RemoteService. Every stream it hands out is
// recorded so tests can drive events and inspect teardown.
type fakeRemote struct {
	mu       sync.Mutex
	user     *Session
	fetchErr error
	gate     chan struct{}
	authErr  error
	openErr  error
	unsubErr error
	openGate chan struct{}

	authSubs []*fakeAuthSub
	channels []*fakeChannel
	log      []string

	fetches atomic.Int32
}

func (r *fakeRemote) setUser(u *Session) {
	r.mu.Lock()
	r.user = u
	r.mu.Unlock()
}

func (r *fakeRemote) GetCurrentSession(ctx context.Context) (*Session, error) {
	r.fetches.Add(1)
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return r.user.Clone(), nil
}

func (r *fakeRemote) OnAuthStateChange(ctx context.Context) (AuthSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.authErr != nil {
		return nil, r.authErr
	}
	s := &fakeAuthSub{events: make(chan AuthEvent, 16)}
	r.authSubs = append(r.authSubs, s)
	return s, nil
}

func (r *fakeRemote) SubscribeToRowUpdate(ctx context.Context, table string, filter RowFilter) (RealtimeChannel, error) {
	r.mu.Lock()
	gate := r.openGate
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openErr != nil {
		return nil, r.openErr
	}
	c := &fakeChannel{
		r:      r,
		table:  table,
		filter: filter,
		events: make(chan RowEvent, 16),
	}
	r.channels = append(r.channels, c)
	r.log = append(r.log, "open:"+filter.Value)
	return c, nil
}

func (r *fakeRemote) authSub(i int) *fakeAuthSub {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.authSubs) {
		return nil
	}
	return r.authSubs[i]
}

func (r *fakeRemote) authSubCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.authSubs)
}

func (r *fakeRemote) channel(i int) *fakeChannel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.channels) {
		return nil
	}
	return r.channels[i]
}

func (r *fakeRemote) channelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

func (r *fakeRemote) openChannels() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.channels {
		if !c.isClosed() {
			n++
		}
	}
	return n
}

func (r *fakeRemote) history() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

type fakeAuthSub struct {
	mu     sync.Mutex
	events chan AuthEvent
	closed bool
}

func (s *fakeAuthSub) Events() <-chan AuthEvent { return s.events }

func (s *fakeAuthSub) send(ev AuthEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events <- ev
	return true
}

// end closes the stream the way a remote disconnect would.
func (s *fakeAuthSub) end() {
	_ = s.Unsubscribe()
}

func (s *fakeAuthSub) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

type fakeChannel struct {
	r      *fakeRemote
	table  string
	filter RowFilter

	mu     sync.Mutex
	events chan RowEvent
	closed bool
}

func (c *fakeChannel) Events() <-chan RowEvent { return c.events }

func (c *fakeChannel) send(ev RowEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.events <- ev
	return true
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) Unsubscribe() error {
	c.r.mu.Lock()
	err := c.r.unsubErr
	c.r.log = append(c.r.log, "close:"+c.filter.Value)
	c.r.mu.Unlock()

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	c.mu.Unlock()
	return err
}

func doctorSession(id string) *Session {
	return &Session{
		ID:    id,
		Email: id + "@example.com",
		Role:  session.RoleAuthenticated,
		Metadata: &Metadata{
			FullName: "Dr. " + id,
			UserType: UserTypeDoctor,
			Status:   StatusActive,
		},
	}
}

func signedIn(kind AuthEventKind, u *Session) AuthEvent {
	if u == nil {
		return AuthEvent{Kind: kind}
	}
	return AuthEvent{Kind: kind, Session: &AuthSession{AccessToken: "at", RefreshToken: "rt", User: u}}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Query.Retry = 0
	cfg.Query.RetryDelay = 0
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Realtime.OpenTimeout = 2 * time.Second
	return cfg
}

func newTestEngine(t *testing.T, r *fakeRemote, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New().WithConfig(cfg).WithRemote(r).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
