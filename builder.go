package connectshare

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alinasr783/connect-share/session"
)

// Builder assembles an [Engine]. A Builder is single use.
//
// Builder instances are intended to be configured during initialization and then
// treated as immutable.
type Builder struct {
	config Config
	remote RemoteService
	logger *slog.Logger

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRemote sets the remote auth/data service. It is required.
func (b *Builder) WithRemote(remote RemoteService) *Builder {
	b.remote = remote
	return b
}

// WithLogger sets the logger used for background failures. Defaults to
// slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink and enables audit dispatch.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the fetch latency histogram. It requires metrics.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready [Engine]. The auth
// listener is not mounted until [Engine.Start].
//
// Build may return an error when the configuration is inconsistent or no remote
// service was provided.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.remote == nil {
		return nil, ErrRemoteRequired
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "connectshare")

	metrics := NewMetrics(cfg.Metrics)

	e := &Engine{
		config:  cfg,
		remote:  b.remote,
		logger:  logger,
		metrics: metrics,
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
	}

	// -------- SESSION CACHE --------
	cache, err := session.NewCache(session.CacheOptions{
		StaleTime:  cfg.Query.StaleTime,
		GCTime:     cfg.Query.GCTime,
		Retry:      cfg.Query.Retry,
		RetryDelay: cfg.Query.RetryDelay,
		OnFetch:    e.onFetch,
		OnRetry: func(attempt int, err error) {
			metrics.Inc(MetricSessionFetchRetry)
			logger.Debug("connectshare: session fetch retry", "attempt", attempt, "error", err)
		},
	})
	if err != nil {
		e.audit.Close()
		return nil, err
	}
	e.cache = cache

	// -------- REALTIME --------
	e.realtime = newRealtimeManager(e)

	b.built = true
	return e, nil
}

func (e *Engine) onFetch(d time.Duration, err error) {
	e.metrics.Inc(MetricSessionFetch)
	e.metrics.Observe(MetricFetchLatency, d)
	if err == nil {
		return
	}
	e.metrics.Inc(MetricSessionFetchFailure)
	e.logger.Warn("connectshare: session fetch failed", "error", err, "duration", d)
	e.emitAudit(context.Background(), auditEventSessionFetchFailure, false, "", err, nil)
}
