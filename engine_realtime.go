package connectshare

import (
	"context"
	"fmt"
	"sync"

	"github.com/alinasr783/connect-share/session"
)

// realtimeManager keeps at most one profile channel open: the one for the cached
// user while at least one consumer is mounted. Cache changes and mount changes
// only signal the manager; its loop is the single place channels are opened and
// closed, so the previous channel is always torn down before the next opens.
type realtimeManager struct {
	e *Engine

	mu     sync.Mutex
	mounts int
	cur    *realtimeChannel

	kick        chan struct{}
	quit        chan struct{}
	done        chan struct{}
	unsubscribe func()
	closeOnce   sync.Once
}

type realtimeChannel struct {
	userID string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newRealtimeManager(e *Engine) *realtimeManager {
	m := &realtimeManager{
		e:    e,
		kick: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	if !e.config.Realtime.Enabled {
		close(m.done)
		return m
	}
	go m.run()
	return m
}

func (m *realtimeManager) signal() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

func (m *realtimeManager) acquire() {
	enabled := m.e.config.Realtime.Enabled
	m.mu.Lock()
	m.mounts++
	if m.mounts == 1 && enabled {
		// Subscribers run under the cache write lock: signal only. The
		// subscription lives only while mounted so the entry can be collected.
		m.unsubscribe = m.e.cache.Subscribe(func(session.Snapshot) { m.signal() })
	}
	m.mu.Unlock()
	if enabled {
		m.signal()
	}
}

func (m *realtimeManager) release() {
	m.mu.Lock()
	if m.mounts > 0 {
		m.mounts--
		if m.mounts == 0 && m.unsubscribe != nil {
			m.unsubscribe()
			m.unsubscribe = nil
		}
	}
	m.mu.Unlock()
	if m.e.config.Realtime.Enabled {
		m.signal()
	}
}

// mounted returns the number of mounted consumers.
func (m *realtimeManager) mounted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounts
}

func (m *realtimeManager) run() {
	defer close(m.done)

	for {
		select {
		case <-m.quit:
			m.closeCurrent()
			return
		case <-m.kick:
			m.reconcile()
		}
	}
}

func (m *realtimeManager) wantedUserID() string {
	m.mu.Lock()
	mounts := m.mounts
	m.mu.Unlock()
	if mounts == 0 {
		return ""
	}
	u := m.e.cache.Read().User
	if !u.Authenticated() {
		return ""
	}
	return u.ID
}

func (m *realtimeManager) reconcile() {
	want := m.wantedUserID()

	if m.cur != nil {
		select {
		case <-m.cur.done:
			// Failed to open or closed by the remote.
			m.cur.cancel()
			m.cur = nil
		default:
		}
	}

	if m.cur != nil && m.cur.userID == want {
		return
	}
	m.closeCurrent()
	if want == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &realtimeChannel{
		userID: want,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.cur = c
	go m.follow(c)
}

func (m *realtimeManager) closeCurrent() {
	if m.cur == nil {
		return
	}
	m.cur.cancel()
	<-m.cur.done
	m.cur = nil
}

// follow opens the channel for c and applies its events until c is cancelled.
func (m *realtimeManager) follow(c *realtimeChannel) {
	defer close(c.done)

	e := m.e
	cfg := e.config.Realtime
	filter := RowFilter{Column: cfg.FilterColumn, Value: c.userID}

	openCtx, cancelOpen := context.WithTimeout(c.ctx, cfg.OpenTimeout)
	ch, err := e.remote.SubscribeToRowUpdate(openCtx, cfg.Table, filter)
	cancelOpen()
	if err != nil {
		if c.ctx.Err() != nil {
			// Unmounted while opening.
			return
		}
		err = fmt.Errorf("%w: %v", ErrRealtimeOpen, err)
		e.metricInc(MetricRealtimeOpenFailure)
		e.logger.Warn("connectshare: realtime open failed", "user_id", c.userID, "filter", filter.String(), "error", err)
		e.emitAudit(c.ctx, auditEventRealtimeOpenFailure, false, c.userID, err, nil)
		return
	}
	if c.ctx.Err() != nil {
		// The open finished after unmount.
		e.teardown(context.Background(), c.userID, ch.Unsubscribe)
		return
	}

	e.metricInc(MetricRealtimeOpened)
	e.emitAudit(c.ctx, auditEventRealtimeOpened, true, c.userID, nil, func() map[string]string {
		return map[string]string{"table": cfg.Table, "filter": filter.String()}
	})

	events := ch.Events()
	for {
		select {
		case <-c.ctx.Done():
			e.teardown(context.Background(), c.userID, ch.Unsubscribe)
			e.metricInc(MetricRealtimeClosed)
			e.emitAudit(context.Background(), auditEventRealtimeClosed, true, c.userID, nil, nil)
			return
		case ev, ok := <-events:
			if !ok {
				e.metricInc(MetricRealtimeClosed)
				e.logger.Info("connectshare: realtime channel closed by remote", "user_id", c.userID)
				return
			}
			e.applyRowEvent(c.ctx, c.userID, ev)
		}
	}
}

// applyRowEvent patches the cached user from an UPDATE of its profile row. Only
// full name, user type and status are taken from the row, and only when present.
func (e *Engine) applyRowEvent(ctx context.Context, userID string, ev RowEvent) {
	if ev.Kind != RowUpdate {
		return
	}
	if ev.Record.ID != "" && ev.Record.ID != userID {
		return
	}

	patch := session.ProfilePatch{
		FullName: ev.Record.FullName,
		UserType: ev.Record.UserType,
		Status:   ev.Record.Status,
	}

	matched := false
	apply := patch.For(userID)
	ok := e.cache.Patch(func(s Session) (Session, bool) {
		next, changed := apply(s)
		matched = changed
		return next, changed
	})
	if !ok {
		e.metricInc(MetricPatchOnAbsentSession)
		e.logger.Debug("connectshare: realtime patch dropped", "user_id", userID, "error", ErrPatchOnAbsentSession)
		e.emitAudit(ctx, auditEventPatchDropped, false, userID, ErrPatchOnAbsentSession, nil)
		return
	}
	if !matched {
		return
	}

	e.metricInc(MetricProfilePatched)
	e.emitAudit(ctx, auditEventProfilePatched, true, userID, nil, func() map[string]string {
		md := map[string]string{}
		if patch.Status != "" {
			md["status"] = string(patch.Status)
		}
		if patch.UserType != "" {
			md["user_type"] = string(patch.UserType)
		}
		if patch.FullName != "" {
			md["full_name"] = "changed"
		}
		return md
	})
}

func (m *realtimeManager) close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		if m.unsubscribe != nil {
			m.unsubscribe()
			m.unsubscribe = nil
		}
		m.mu.Unlock()
		close(m.quit)
		<-m.done
	})
}
