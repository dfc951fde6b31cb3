package connectshare

import (
	"context"
	"fmt"
	"sync"

	"github.com/alinasr783/connect-share/session"
)

// CurrentUser returns the current user without blocking. The first call on an
// empty cache starts exactly one background fetch and reports IsPending until it
// settles. Fetch failures are reported in UserState.Error, never returned.
func (e *Engine) CurrentUser(ctx context.Context) UserState {
	if e == nil || e.cache == nil {
		return UserState{Error: ErrEngineNotReady}
	}
	if e.isClosed() {
		return UserState{Error: ErrEngineClosed}
	}
	return userStateFrom(e.ensureLoaded(ctx))
}

// AwaitUser is CurrentUser that waits for a pending or in-flight fetch to settle.
// When ctx ends first the still-pending state is returned.
func (e *Engine) AwaitUser(ctx context.Context) UserState {
	if e == nil || e.cache == nil {
		return UserState{Error: ErrEngineNotReady}
	}
	if e.isClosed() {
		return UserState{Error: ErrEngineClosed}
	}

	snap := e.ensureLoaded(ctx)
	if !snap.Pending() && !snap.Fetching {
		return userStateFrom(snap)
	}
	settled, err := e.cache.Wait(ctx)
	if err != nil {
		return userStateFrom(e.cache.Read())
	}
	return userStateFrom(settled)
}

// Mount registers a consumer of the current user. While at least one consumer is
// mounted the cache entry is kept and a realtime channel follows the user's
// profile row. Mount refetches when the cached user is stale and refetch on mount
// is enabled.
//
// The returned release func is idempotent.
func (e *Engine) Mount(ctx context.Context) (release func()) {
	if e == nil || e.cache == nil || e.isClosed() {
		return func() {}
	}

	unobserve := e.cache.Observe()

	switch {
	case e.config.Query.RefetchOnMount && e.cache.Stale():
		if !e.cache.Read().Fetching {
			e.metricInc(MetricMountRefetch)
		}
		e.cache.Ensure(ctx, e.fetchSession)
	default:
		e.ensureLoaded(ctx)
	}

	e.realtime.acquire()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.realtime.release()
			unobserve()
		})
	}
}

// Focus signals that the client regained focus. The user is refetched when stale
// and refetch on focus is enabled.
func (e *Engine) Focus(ctx context.Context) {
	if e == nil || e.cache == nil || e.isClosed() {
		return
	}
	if !e.config.Query.RefetchOnFocus || !e.cache.Stale() {
		return
	}
	if !e.cache.Read().Fetching {
		e.metricInc(MetricFocusRefetch)
	}
	e.cache.Refetch(ctx, e.fetchSession)
}

// Invalidate marks the cached user stale so the next mount or focus refetches it.
func (e *Engine) Invalidate() {
	if e == nil || e.cache == nil {
		return
	}
	e.cache.Invalidate()
}

// ensureLoaded starts the first fetch when nothing has been attempted yet. A
// settled value or error is left alone; mount and focus own refetching.
func (e *Engine) ensureLoaded(ctx context.Context) session.Snapshot {
	snap := e.cache.Read()
	if snap.Pending() && !snap.Fetching {
		snap = e.cache.Ensure(ctx, e.fetchSession)
	}
	return snap
}

func (e *Engine) fetchSession(ctx context.Context) (*Session, error) {
	s, err := e.remote.GetCurrentSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionFetch, err)
	}
	return s, nil
}
