package connectshare

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// authListener owns the single auth-state subscription of an Engine. Its loop is
// the only writer of wholesale session replacements.
type authListener struct {
	e      *Engine
	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	sub AuthSubscription

	done chan struct{}
}

func (e *Engine) mountListener(ctx context.Context) (*authListener, error) {
	lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	sub, err := e.remote.OnAuthStateChange(lctx)
	if err != nil {
		cancel()
		e.metricInc(MetricListenerSubscribeFailure)
		err = fmt.Errorf("%w: %v", ErrListenerSubscribe, err)
		e.logger.Warn("connectshare: auth listener subscribe failed", "error", err)
		e.emitAudit(ctx, auditEventListenerFailure, false, "", err, nil)
		return nil, err
	}

	l := &authListener{
		e:      e,
		ctx:    lctx,
		cancel: cancel,
		sub:    sub,
		done:   make(chan struct{}),
	}
	go l.run()

	e.emitAudit(ctx, auditEventListenerMounted, true, "", nil, nil)
	return l, nil
}

func (l *authListener) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		sub := l.sub
		l.mu.Unlock()
		if sub == nil {
			return
		}

		if !l.drain(sub) {
			return
		}

		// The remote closed the stream.
		if !l.resubscribe() {
			return
		}
	}
}

// drain dispatches events until the stream closes or the listener stops. It
// reports whether the stream closed on its own.
func (l *authListener) drain(sub AuthSubscription) bool {
	events := sub.Events()
	for {
		select {
		case <-l.ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return l.ctx.Err() == nil
			}
			l.e.handleAuthEvent(l.ctx, ev)
		}
	}
}

func (l *authListener) resubscribe() bool {
	delay := l.e.config.Listener.ResubscribeDelay
	if delay <= 0 {
		l.e.logger.Info("connectshare: auth stream closed by remote")
		return false
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return false
		case <-timer.C:
		}

		sub, err := l.e.remote.OnAuthStateChange(l.ctx)
		if err == nil {
			l.mu.Lock()
			l.sub = sub
			l.mu.Unlock()
			return true
		}
		if l.ctx.Err() != nil {
			return false
		}
		l.e.metricInc(MetricListenerSubscribeFailure)
		l.e.logger.Warn("connectshare: auth listener resubscribe failed", "error", err)
		timer.Reset(delay)
	}
}

func (l *authListener) stop() {
	l.cancel()
	<-l.done

	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()

	if sub != nil {
		l.e.teardown(context.Background(), "", sub.Unsubscribe)
	}
}

// handleAuthEvent applies one auth transition. Only sign-in, sign-out and token
// refresh replace the cached user; every other kind is ignored.
func (e *Engine) handleAuthEvent(ctx context.Context, ev AuthEvent) {
	if !ev.Kind.replacesSession() {
		e.metricInc(MetricAuthEventIgnored)
		e.logger.Debug("connectshare: auth event ignored", "kind", string(ev.Kind))
		return
	}

	user := ev.user()
	if ev.Kind == AuthEventSignedOut {
		user = nil
	}
	e.cache.Write(user)

	switch ev.Kind {
	case AuthEventSignedIn:
		e.metricInc(MetricAuthSignedIn)
	case AuthEventSignedOut:
		e.metricInc(MetricAuthSignedOut)
	case AuthEventTokenRefreshed:
		e.metricInc(MetricAuthTokenRefreshed)
	}

	userID := ""
	if user != nil {
		userID = user.ID
	}
	e.emitAudit(ctx, auditEventForKind(ev.Kind), true, userID, nil, nil)
}

// teardown runs unsubscribe and swallows its error.
func (e *Engine) teardown(ctx context.Context, userID string, unsubscribe func() error) {
	err := unsubscribe()
	if err == nil {
		return
	}
	err = fmt.Errorf("%w: %v", ErrSubscriptionTeardown, err)
	e.metricInc(MetricTeardownError)
	e.logger.Debug("connectshare: subscription teardown failed", "user_id", userID, "error", err)
	e.emitAudit(ctx, auditEventRealtimeClosed, false, userID, err, nil)
}
