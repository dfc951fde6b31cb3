package connectshare

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands audit events from the listener and realtime loops to the
// sink on a goroutine of its own, so a slow sink never stalls session updates.
//
// The queue is closed under mu once closing is set; senders hold the read lock,
// so no send races the close.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool

	mu      sync.RWMutex
	closing bool
	queue   chan AuditEvent
	stopped chan struct{}

	emitted atomic.Uint64
	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, size),
		stopped:    make(chan struct{}),
	}
	go d.loop()
	return d
}

// loop delivers until the queue is closed and drained.
func (d *auditDispatcher) loop() {
	defer close(d.stopped)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
		d.emitted.Add(1)
	}
}

// Emit queues event. A full queue drops and counts the event when dropIfFull is
// set, and otherwise blocks until there is room or ctx ends. Events emitted after
// Close are discarded.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closing {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close delivers what is queued and waits for the sink to receive it. Close is
// idempotent.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closing {
		d.closing = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped reports events discarded on a full queue.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Emitted reports events the sink received.
func (d *auditDispatcher) Emitted() uint64 {
	if d == nil {
		return 0
	}
	return d.emitted.Load()
}
