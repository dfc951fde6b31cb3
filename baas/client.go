package baas

import (
	"context"
	"errors"
	"sync"

	connectshare "github.com/alinasr783/connect-share"
	"github.com/alinasr783/connect-share/jwt"
	"github.com/alinasr783/connect-share/session"
)

// Client is one signed-in device of the auth service: it holds the device's
// tokens and reports auth transitions to its subscribers. Client implements
// connectshare.RemoteService.
type Client struct {
	b *Backend

	mu      sync.Mutex
	current *connectshare.AuthSession
	subs    map[uint64]*authSubscription
	nextID  uint64
	closed  bool
}

var _ connectshare.RemoteService = (*Client)(nil)

// NewClient returns a signed-out client.
func (b *Backend) NewClient() *Client {
	return &Client{
		b:    b,
		subs: make(map[uint64]*authSubscription),
	}
}

// SignUp registers a new account and signs the client in.
func (c *Client) SignUp(ctx context.Context, p SignUpParams) (*connectshare.AuthSession, error) {
	s, err := c.b.signUp(ctx, p)
	if err != nil {
		return nil, err
	}
	c.setSession(s, connectshare.AuthEventSignedIn)
	return cloneAuthSession(s), nil
}

// SignInWithPassword signs the client in.
func (c *Client) SignInWithPassword(ctx context.Context, email, pw string) (*connectshare.AuthSession, error) {
	s, err := c.b.signIn(ctx, email, pw)
	if err != nil {
		return nil, err
	}
	c.setSession(s, connectshare.AuthEventSignedIn)
	return cloneAuthSession(s), nil
}

// SignOut revokes the client's session. The client is signed out locally even when
// the revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return nil
	}

	err := c.b.signOut(ctx, cur.RefreshToken)
	c.setSession(nil, connectshare.AuthEventSignedOut)
	return err
}

// RefreshSession rotates the refresh token and issues a new access token. A
// rejected refresh token signs the client out.
func (c *Client) RefreshSession(ctx context.Context) (*connectshare.AuthSession, error) {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return nil, ErrNoSession
	}

	s, err := c.b.rotate(ctx, cur.RefreshToken)
	if errors.Is(err, ErrInvalidRefresh) || errors.Is(err, ErrUserNotFound) {
		c.setSession(nil, connectshare.AuthEventSignedOut)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	c.setSession(s, connectshare.AuthEventTokenRefreshed)
	return cloneAuthSession(s), nil
}

// UserAttributes are the self-service profile fields.
type UserAttributes struct {
	FullName string
	Avatar   string
}

// UpdateUser changes the signed-in user's own profile. Subscribers see
// USER_UPDATED; the profile row's realtime channel sees the UPDATE.
func (c *Client) UpdateUser(ctx context.Context, attrs UserAttributes) (*session.Session, error) {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil || cur.User == nil {
		return nil, ErrNoSession
	}

	row, err := c.b.UpdateProfile(ctx, cur.User.ID, ProfileUpdate{FullName: attrs.FullName, Avatar: attrs.Avatar})
	if err != nil {
		return nil, err
	}

	next := cloneAuthSession(cur)
	next.User = sessionFromRow(row)
	c.setSession(next, connectshare.AuthEventUserUpdated)
	return next.User.Clone(), nil
}

// Session returns a copy of the client's tokens, or nil when signed out.
func (c *Client) Session() *connectshare.AuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneAuthSession(c.current)
}

// GetCurrentSession returns the signed-in user, refreshing an expired access
// token first. It returns nil when signed out or when the session was revoked.
func (c *Client) GetCurrentSession(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return nil, nil
	}

	user, err := c.b.Verify(ctx, cur.AccessToken)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, jwt.ErrExpired):
		s, rerr := c.RefreshSession(ctx)
		if errors.Is(rerr, ErrInvalidRefresh) || errors.Is(rerr, ErrUserNotFound) {
			return nil, nil
		}
		if rerr != nil {
			return nil, rerr
		}
		return s.User, nil
	case errors.Is(err, ErrNoSession), errors.Is(err, jwt.ErrInvalid):
		c.setSession(nil, connectshare.AuthEventSignedOut)
		return nil, nil
	default:
		return nil, err
	}
}

// OnAuthStateChange subscribes to auth transitions. The first event is always
// INITIAL_SESSION carrying the current session. The subscription ends on
// Unsubscribe or when ctx ends.
func (c *Client) OnAuthStateChange(ctx context.Context) (connectshare.AuthSubscription, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	c.nextID++
	sub := newAuthSubscription(c, c.nextID)
	c.subs[sub.id] = sub
	sub.push(connectshare.AuthEvent{Kind: connectshare.AuthEventInitialSession, Session: cloneAuthSession(c.current)})
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Unsubscribe()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// SubscribeToRowUpdate opens a realtime feed on the backend.
func (c *Client) SubscribeToRowUpdate(ctx context.Context, table string, filter connectshare.RowFilter) (connectshare.RealtimeChannel, error) {
	return c.b.SubscribeToRowUpdate(ctx, table, filter)
}

// Close ends every auth subscription. It does not sign the client out.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	subs := make([]*authSubscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
	}
}

// setSession stores s and reports kind to every subscriber, in order.
func (c *Client) setSession(s *connectshare.AuthSession, kind connectshare.AuthEventKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = cloneAuthSession(s)
	for _, sub := range c.subs {
		sub.push(connectshare.AuthEvent{Kind: kind, Session: cloneAuthSession(s)})
	}
}

func (c *Client) remove(id uint64) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func cloneAuthSession(s *connectshare.AuthSession) *connectshare.AuthSession {
	if s == nil {
		return nil
	}
	out := *s
	out.User = s.User.Clone()
	return &out
}

// authSubscription queues events without bound so a slow consumer never blocks
// the client.
type authSubscription struct {
	c  *Client
	id uint64

	mu    sync.Mutex
	queue []connectshare.AuthEvent

	wake chan struct{}
	done chan struct{}
	out  chan connectshare.AuthEvent
	once sync.Once
}

func newAuthSubscription(c *Client, id uint64) *authSubscription {
	s := &authSubscription{
		c:    c,
		id:   id,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan connectshare.AuthEvent),
	}
	go s.run()
	return s
}

func (s *authSubscription) Events() <-chan connectshare.AuthEvent { return s.out }

func (s *authSubscription) push(ev connectshare.AuthEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *authSubscription) run() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

// Unsubscribe ends the subscription and closes Events.
func (s *authSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.c.remove(s.id)
		close(s.done)
	})
	return nil
}
