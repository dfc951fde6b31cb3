package connectshare

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alinasr783/connect-share/session"
)

// Engine owns the session cache and everything that feeds it: the auth listener
// writing auth transitions, the accessor loading the current user, and the
// realtime manager patching profile changes.
//
// An Engine represents one signed-in client. All methods are safe for concurrent
// use.
type Engine struct {
	config   Config
	remote   RemoteService
	cache    *session.Cache
	logger   *slog.Logger
	audit    *auditDispatcher
	metrics  *Metrics
	realtime *realtimeManager

	listenMu sync.Mutex
	listener *authListener

	mu     sync.Mutex
	closed bool
}

// Start mounts the auth listener. Calling Start again while the listener is
// mounted is a no-op, so any number of consumers can call it.
//
// Start returns an error wrapping [ErrListenerSubscribe] when the remote service
// refuses the subscription; Start may be retried.
func (e *Engine) Start(ctx context.Context) error {
	if e == nil || e.cache == nil {
		return ErrEngineNotReady
	}
	if e.isClosed() {
		return ErrEngineClosed
	}

	e.listenMu.Lock()
	defer e.listenMu.Unlock()

	if e.listener != nil {
		return nil
	}

	l, err := e.mountListener(ctx)
	if err != nil {
		return err
	}
	e.listener = l
	return nil
}

// Listening reports whether the auth listener is mounted.
func (e *Engine) Listening() bool {
	if e == nil {
		return false
	}
	e.listenMu.Lock()
	defer e.listenMu.Unlock()
	return e.listener != nil
}

// Mounted returns the number of consumers currently holding a [Engine.Mount].
func (e *Engine) Mounted() int {
	if e == nil || e.realtime == nil {
		return 0
	}
	return e.realtime.mounted()
}

// Close unmounts the listener, closes any realtime channel, and releases the
// cache. Close is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.listenMu.Lock()
	if e.listener != nil {
		e.listener.stop()
		e.listener = nil
	}
	e.listenMu.Unlock()

	if e.realtime != nil {
		e.realtime.close()
	}
	if e.cache != nil {
		e.cache.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return e.config
}

// AuditDropped returns how many audit events were dropped because the buffer was
// full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter. It is empty when metrics are
// disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// FetchCount returns the number of outbound session fetch attempts. It counts
// independently of metrics.
func (e *Engine) FetchCount() uint64 {
	if e == nil || e.cache == nil {
		return 0
	}
	return e.cache.FetchCount()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
