package connectshare

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// AuditEvent records one session-layer transition: an auth event applied to the
// cache, a realtime patch, a channel opened or closed, or a failed fetch. Events
// never carry tokens or profile contents.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Route     string            `json:"route,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// attrs renders the event as slog attributes, metadata grouped last.
func (e AuditEvent) attrs() []slog.Attr {
	out := []slog.Attr{
		slog.String("event_type", e.EventType),
		slog.Bool("success", e.Success),
	}
	if e.UserID != "" {
		out = append(out, slog.String("user_id", e.UserID))
	}
	if e.Route != "" {
		out = append(out, slog.String("route", e.Route))
	}
	if e.IP != "" {
		out = append(out, slog.String("ip", e.IP))
	}
	if e.Error != "" {
		out = append(out, slog.String("error", e.Error))
	}
	if len(e.Metadata) > 0 {
		md := make([]any, 0, len(e.Metadata))
		for k, v := range e.Metadata {
			md = append(md, slog.String(k, v))
		}
		out = append(out, slog.Group("metadata", md...))
	}
	return out
}

// AuditSink receives audit events. Emit is called from a single dispatcher
// goroutine per engine; a sink shared by several engines must be safe for
// concurrent use.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel, blocking while it is full.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}

// SlogSink logs events at info level, failures at warn.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink logs through logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event AuditEvent) {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "connectshare: audit", event.attrs()...)
}
