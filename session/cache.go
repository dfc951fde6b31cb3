package session

import (
	"context"
	"time"

	"github.com/alinasr783/connect-share/internal/query"
)

// UserKey is the query key the current user is cached under.
const UserKey = "user"

// CacheOptions controls the fetch policy of the user entry.
type CacheOptions struct {
	StaleTime  time.Duration
	GCTime     time.Duration
	Retry      int
	RetryDelay time.Duration

	OnFetch func(d time.Duration, err error)
	OnRetry func(attempt int, err error)
}

// Snapshot is a point-in-time copy of the cached user entry.
//
// Loaded is false until the first fetch or write settles. User is nil both while
// loading and when nobody is signed in; Loaded tells the two apart.
type Snapshot struct {
	User      *Session
	Loaded    bool
	Fetching  bool
	Err       error
	UpdatedAt time.Time
}

// Pending reports whether no value or error has settled yet.
func (s Snapshot) Pending() bool {
	return !s.Loaded && s.Err == nil
}

// Fetcher loads the current session from the remote service.
type Fetcher func(ctx context.Context) (*Session, error)

// Cache is the single source of truth for the current user. It is an in-memory
// broadcast store: Write replaces the value atomically, Patch transforms a present
// value, and subscribers are notified synchronously in mutation order.
//
// Values are copied on the way in and on the way out, so callers can never alias
// the cached session.
type Cache struct {
	q *query.Client[*Session]
}

// NewCache creates an empty [Cache].
func NewCache(opts CacheOptions) (*Cache, error) {
	qopts := query.Options{
		StaleTime:  opts.StaleTime,
		GCTime:     opts.GCTime,
		Retry:      opts.Retry,
		RetryDelay: opts.RetryDelay,
		MaxEntries: 8,
	}
	if opts.OnFetch != nil {
		qopts.OnFetch = func(_ string, d time.Duration, err error) { opts.OnFetch(d, err) }
	}
	if opts.OnRetry != nil {
		qopts.OnRetry = func(_ string, attempt int, err error) { opts.OnRetry(attempt, err) }
	}
	q, err := query.New[*Session](qopts)
	if err != nil {
		return nil, err
	}
	return &Cache{q: q}, nil
}

// Read returns the current value.
func (c *Cache) Read() Snapshot {
	return toSnapshot(c.q.Get(UserKey))
}

// Write replaces the cached value. nil records "nobody signed in".
func (c *Cache) Write(s *Session) {
	c.q.Set(UserKey, s.Clone())
}

// Patch applies fn to the cached session. fn reports whether it changed anything;
// when it declines, the entry and its freshness are left untouched and nobody is
// notified. found is false when the cache holds no session.
func (c *Cache) Patch(fn func(Session) (Session, bool)) (found bool) {
	c.q.Update(UserKey, func(cur *Session) (*Session, bool) {
		if cur == nil {
			return nil, false
		}
		found = true
		next, changed := fn(*cur.Clone())
		if !changed {
			return cur, false
		}
		return next.Clone(), true
	})
	return found
}

// Subscribe calls fn after every change. The returned func cancels the subscription.
// fn must not write to the cache.
func (c *Cache) Subscribe(fn func(Snapshot)) func() {
	return c.q.Subscribe(UserKey, func(st query.State[*Session]) {
		fn(toSnapshot(st))
	})
}

// Ensure returns the current value and starts a background fetch when the entry
// is missing or stale.
func (c *Cache) Ensure(ctx context.Context, fetch Fetcher) Snapshot {
	return toSnapshot(c.q.Ensure(ctx, UserKey, query.FetchFunc[*Session](fetch)))
}

// Refetch starts a background fetch unless one is already running.
func (c *Cache) Refetch(ctx context.Context, fetch Fetcher) Snapshot {
	return toSnapshot(c.q.Refetch(ctx, UserKey, query.FetchFunc[*Session](fetch)))
}

// Load fetches the current session, sharing an in-flight fetch when one exists.
func (c *Cache) Load(ctx context.Context, fetch Fetcher) (*Session, error) {
	s, err := c.q.Fetch(ctx, UserKey, query.FetchFunc[*Session](fetch))
	return s.Clone(), err
}

// Wait blocks until the entry is no longer pending or fetching, or ctx ends.
func (c *Cache) Wait(ctx context.Context) (Snapshot, error) {
	st, err := c.q.Wait(ctx, UserKey, func(st query.State[*Session]) bool {
		return !st.Fetching && !st.Pending()
	})
	return toSnapshot(st), err
}

// Observe registers a consumer; the entry is kept while any consumer remains.
func (c *Cache) Observe() func() {
	return c.q.Observe(UserKey)
}

// Stale reports whether the next Ensure would refetch.
func (c *Cache) Stale() bool {
	return c.q.Stale(UserKey)
}

// Invalidate marks the entry stale.
func (c *Cache) Invalidate() {
	c.q.Invalidate(UserKey)
}

// FetchCount returns the number of outbound fetch attempts made so far.
func (c *Cache) FetchCount() uint64 {
	return c.q.Stats().Fetches
}

// Close releases the cache.
func (c *Cache) Close() {
	c.q.Close()
}

func toSnapshot(st query.State[*Session]) Snapshot {
	return Snapshot{
		User:      st.Data.Clone(),
		Loaded:    st.HasData,
		Fetching:  st.Fetching,
		Err:       st.Err,
		UpdatedAt: st.UpdatedAt,
	}
}
