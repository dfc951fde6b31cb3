package query

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const maxRetryDelay = 30 * time.Second

// ErrClosed is returned by blocking calls on a closed client.
var ErrClosed = errors.New("query client closed")

// Status is the coarse lifecycle of one cache entry.
type Status uint8

const (
	// StatusPending means no fetch has produced data or an error yet.
	StatusPending Status = iota
	// StatusSuccess means Data holds the latest fetched or written value.
	StatusSuccess
	// StatusError means the latest fetch failed. Data keeps the previous value, if any.
	StatusError
)

// Options controls fetch policy for every key of a [Client].
type Options struct {
	StaleTime  time.Duration
	GCTime     time.Duration
	Retry      int
	RetryDelay time.Duration
	MaxEntries int

	// OnFetch, when set, is called after every fetch attempt sequence completes.
	OnFetch func(key string, d time.Duration, err error)
	// OnRetry, when set, is called before every automatic retry.
	OnRetry func(key string, attempt int, err error)
}

// State is a point-in-time copy of one entry.
type State[V any] struct {
	Data      V
	HasData   bool
	Err       error
	Status    Status
	Fetching  bool
	UpdatedAt time.Time
}

// Pending reports whether the entry has neither data nor a settled error.
func (s State[V]) Pending() bool {
	return !s.HasData && s.Status == StatusPending
}

// FetchFunc loads the value for one key.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Stats counts outbound fetch activity.
type Stats struct {
	Fetches  uint64
	Retries  uint64
	Failures uint64
	Dropped  uint64
}

type entry[V any] struct {
	state State[V]
	// gen is bumped by every write; a fetch started under an older gen is discarded.
	gen uint64
	// runs is bumped by every background start so a start can tell whether a
	// finish has cleared its Fetching flag.
	runs      uint64
	invalid   bool
	subs      map[uint64]func(State[V])
	observers int
	gcTimer   *time.Timer
}

// Client is a keyed in-memory query cache with stale-while-revalidate fetch
// policy, singleflight fetch deduplication, observer-based garbage collection and
// synchronous change notification.
//
// Every mutation and its notifications run under one write lock, so subscribers see
// changes in the order they were made. Subscribers must not write to the same
// client from inside their callback.
type Client[V any] struct {
	opts Options
	now  func() time.Time

	writeMu sync.Mutex
	mu      sync.Mutex
	entries *lru.Cache[string, *entry[V]]
	group   singleflight.Group
	nextSub uint64
	closed  bool

	fetches  atomic.Uint64
	retries  atomic.Uint64
	failures atomic.Uint64
	dropped  atomic.Uint64
}

// New creates a [Client]. MaxEntries <= 0 defaults to 64.
func New[V any](opts Options) (*Client[V], error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 64
	}
	if opts.Retry < 0 {
		return nil, errors.New("query retry must be >= 0")
	}
	c := &Client[V]{
		opts: opts,
		now:  time.Now,
	}
	cache, err := lru.NewWithEvict[string, *entry[V]](opts.MaxEntries, func(_ string, e *entry[V]) {
		if e.gcTimer != nil {
			e.gcTimer.Stop()
		}
	})
	if err != nil {
		return nil, err
	}
	c.entries = cache
	return c, nil
}

// Get returns the current state for key. Unknown keys report [StatusPending].
func (c *Client[V]) Get(key string) State[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(key)
	if !ok {
		return State[V]{}
	}
	return e.state
}

// Stale reports whether key would be refetched by [Client.Ensure].
func (c *Client[V]) Stale(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(key)
	if !ok {
		return true
	}
	return c.staleLocked(e)
}

// Stats returns cumulative fetch counters.
func (c *Client[V]) Stats() Stats {
	return Stats{
		Fetches:  c.fetches.Load(),
		Retries:  c.retries.Load(),
		Failures: c.failures.Load(),
		Dropped:  c.dropped.Load(),
	}
}

// Ensure returns the current state for key and, when the entry has no data or is
// stale and no fetch is running, starts one in the background. The returned state
// already reflects the started fetch.
func (c *Client[V]) Ensure(ctx context.Context, key string, fn FetchFunc[V]) State[V] {
	return c.start(ctx, key, fn, false)
}

// Refetch starts a background fetch for key unless one is already running.
func (c *Client[V]) Refetch(ctx context.Context, key string, fn FetchFunc[V]) State[V] {
	return c.start(ctx, key, fn, true)
}

func (c *Client[V]) start(ctx context.Context, key string, fn FetchFunc[V], force bool) State[V] {
	c.writeMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.writeMu.Unlock()
		return State[V]{}
	}
	e := c.entryLocked(key)
	if e.state.Fetching || (!force && !c.staleLocked(e)) {
		st := e.state
		c.mu.Unlock()
		c.writeMu.Unlock()
		return st
	}
	e.state.Fetching = true
	e.runs++
	run := e.runs
	gen := e.gen
	st := e.state
	subs := subscribers(e)
	c.mu.Unlock()
	notify(subs, st)
	c.writeMu.Unlock()

	go c.run(context.WithoutCancel(ctx), key, gen, run, fn)
	return st
}

// run executes fn through the singleflight group. A call that joins one which
// already finished before this start would leave Fetching set with nothing to
// clear it, so run retries until its own fn executes or a finish has settled the
// entry.
func (c *Client[V]) run(ctx context.Context, key string, gen, run uint64, fn FetchFunc[V]) {
	for {
		ran := false
		c.group.Do(key, func() (any, error) {
			ran = true
			return c.execute(ctx, key, gen, fn)
		})
		if ran || !c.awaitingRun(key, run) {
			return
		}
		runtime.Gosched()
	}
}

func (c *Client[V]) awaitingRun(key string, run uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	e, ok := c.entries.Peek(key)
	return ok && e.state.Fetching && e.runs == run
}

// Fetch runs fn for key, sharing one in-flight call among concurrent callers, and
// stores the result. A caller whose ctx ends stops waiting; the fetch itself keeps
// running and still lands in the cache.
func (c *Client[V]) Fetch(ctx context.Context, key string, fn FetchFunc[V]) (V, error) {
	var zero V
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return zero, ErrClosed
	}

	fctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		gen := c.markFetching(key)
		return c.execute(fctx, key, gen, fn)
	})
	select {
	case res := <-ch:
		v, _ := res.Val.(V)
		return v, res.Err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Client[V]) markFetching(key string) uint64 {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	e := c.entryLocked(key)
	gen := e.gen
	if e.state.Fetching {
		c.mu.Unlock()
		return gen
	}
	e.state.Fetching = true
	st := e.state
	subs := subscribers(e)
	c.mu.Unlock()
	notify(subs, st)
	return gen
}

func (c *Client[V]) execute(ctx context.Context, key string, gen uint64, fn FetchFunc[V]) (V, error) {
	started := c.now()
	var (
		v   V
		err error
	)
	for attempt := 0; ; attempt++ {
		c.fetches.Add(1)
		v, err = fn(ctx)
		if err == nil || attempt >= c.opts.Retry {
			break
		}
		c.retries.Add(1)
		if c.opts.OnRetry != nil {
			c.opts.OnRetry(key, attempt+1, err)
		}
		time.Sleep(retryDelay(c.opts.RetryDelay, attempt))
	}
	if err != nil {
		c.failures.Add(1)
	}
	if c.opts.OnFetch != nil {
		c.opts.OnFetch(key, c.now().Sub(started), err)
	}
	return c.finish(key, gen, v, err)
}

func (c *Client[V]) finish(key string, gen uint64, v V, err error) (V, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	e := c.entryLocked(key)
	e.state.Fetching = false
	if e.gen != gen {
		// A write landed while the fetch was running; it wins.
		c.dropped.Add(1)
		st := e.state
		subs := subscribers(e)
		c.mu.Unlock()
		notify(subs, st)
		return st.Data, nil
	}
	if err != nil {
		e.state.Err = err
		e.state.Status = StatusError
	} else {
		e.gen++
		e.invalid = false
		e.state.Data = v
		e.state.HasData = true
		e.state.Err = nil
		e.state.Status = StatusSuccess
		e.state.UpdatedAt = c.now()
	}
	st := e.state
	subs := subscribers(e)
	c.mu.Unlock()
	notify(subs, st)
	return v, err
}

// Set replaces the value for key and notifies subscribers. Any fetch running for
// key is discarded when it completes.
func (c *Client[V]) Set(key string, v V) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	e := c.entryLocked(key)
	e.gen++
	e.invalid = false
	e.state.Data = v
	e.state.HasData = true
	e.state.Err = nil
	e.state.Status = StatusSuccess
	e.state.UpdatedAt = c.now()
	st := e.state
	subs := subscribers(e)
	c.mu.Unlock()
	notify(subs, st)
}

// Update applies fn to the current value of key as one read-modify-write step.
// It is a no-op returning false when key has no data or fn declines the change.
func (c *Client[V]) Update(key string, fn func(V) (V, bool)) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	e, ok := c.entries.Peek(key)
	if c.closed || !ok || !e.state.HasData {
		c.mu.Unlock()
		return false
	}
	next, changed := fn(e.state.Data)
	if !changed {
		c.mu.Unlock()
		return false
	}
	e.gen++
	e.state.Data = next
	e.state.UpdatedAt = c.now()
	st := e.state
	subs := subscribers(e)
	c.mu.Unlock()
	notify(subs, st)
	return true
}

// Invalidate marks key stale so the next [Client.Ensure] refetches it.
func (c *Client[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Peek(key); ok {
		e.invalid = true
	}
}

// Remove drops key and its state. Subscribers are kept on a fresh entry.
func (c *Client[V]) Remove(key string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	e, ok := c.entries.Peek(key)
	if !ok {
		c.mu.Unlock()
		return
	}
	e.gen++
	e.invalid = false
	e.state = State[V]{}
	st := e.state
	subs := subscribers(e)
	c.mu.Unlock()
	notify(subs, st)
}

// Subscribe registers fn for every change to key. The returned cancel func is
// idempotent.
func (c *Client[V]) Subscribe(key string, fn func(State[V])) func() {
	c.mu.Lock()
	e := c.entryLocked(key)
	c.nextSub++
	id := c.nextSub
	e.subs[id] = fn
	c.scheduleGCLocked(key, e)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(e.subs, id)
			c.scheduleGCLocked(key, e)
		})
	}
}

// Observe registers a consumer of key. While at least one observer or subscriber
// holds key it is never garbage collected; after the last one leaves it is removed
// once GCTime elapses.
func (c *Client[V]) Observe(key string) func() {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.observers++
	c.scheduleGCLocked(key, e)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			e.observers--
			c.scheduleGCLocked(key, e)
		})
	}
}

// Observers returns the number of registered observers of key.
func (c *Client[V]) Observers(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Peek(key); ok {
		return e.observers
	}
	return 0
}

// Wait blocks until done reports true for the state of key or ctx ends.
func (c *Client[V]) Wait(ctx context.Context, key string, done func(State[V]) bool) (State[V], error) {
	changed := make(chan struct{}, 1)
	cancel := c.Subscribe(key, func(State[V]) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		st := c.Get(key)
		if done(st) {
			return st, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Close drops every entry and stops garbage collection timers.
func (c *Client[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.entries.Purge()
}

func (c *Client[V]) entryLocked(key string) *entry[V] {
	if e, ok := c.entries.Get(key); ok {
		return e
	}
	e := &entry[V]{subs: make(map[uint64]func(State[V]))}
	c.entries.Add(key, e)
	c.scheduleGCLocked(key, e)
	return e
}

func (c *Client[V]) staleLocked(e *entry[V]) bool {
	if !e.state.HasData || e.invalid {
		return true
	}
	return c.now().Sub(e.state.UpdatedAt) >= c.opts.StaleTime
}

func (c *Client[V]) scheduleGCLocked(key string, e *entry[V]) {
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	if c.opts.GCTime <= 0 || e.observers > 0 || len(e.subs) > 0 {
		return
	}
	e.gcTimer = time.AfterFunc(c.opts.GCTime, func() {
		c.collect(key, e)
	})
}

func (c *Client[V]) collect(key string, e *entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.entries.Peek(key)
	if !ok || current != e || e.observers > 0 || len(e.subs) > 0 || e.state.Fetching {
		return
	}
	c.entries.Remove(key)
}

func subscribers[V any](e *entry[V]) []func(State[V]) {
	if len(e.subs) == 0 {
		return nil
	}
	out := make([]func(State[V]), 0, len(e.subs))
	for _, fn := range e.subs {
		out = append(out, fn)
	}
	return out
}

func notify[V any](subs []func(State[V]), st State[V]) {
	for _, fn := range subs {
		fn(st)
	}
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << attempt
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
