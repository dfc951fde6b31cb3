package connectshare

import (
	"errors"
	"strings"
	"time"
)

// Config holds every tunable of an [Engine].
//
// Config instances are intended to be configured during initialization and then
// treated as immutable.
type Config struct {
	Query    QueryConfig
	Realtime RealtimeConfig
	Listener ListenerConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
QUERY CONFIG
====================================
*/

// QueryConfig is the fetch policy of the current-user entry.
type QueryConfig struct {
	StaleTime      time.Duration
	GCTime         time.Duration
	Retry          int
	RetryDelay     time.Duration
	RefetchOnFocus bool
	RefetchOnMount bool
}

/*
====================================
REALTIME CONFIG
====================================
*/

// RealtimeConfig scopes the profile realtime channel.
type RealtimeConfig struct {
	Enabled      bool
	Table        string
	FilterColumn string
	OpenTimeout  time.Duration
}

// ListenerConfig controls the auth-state listener.
type ListenerConfig struct {
	// ResubscribeDelay is how long the listener waits before reopening a stream the
	// remote service closed. Zero disables resubscription.
	ResubscribeDelay time.Duration
}

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: data is fresh for five minutes,
// unused entries are collected after ten, and failed fetches are retried once.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Query: QueryConfig{
			StaleTime:      5 * time.Minute,
			GCTime:         10 * time.Minute,
			Retry:          1,
			RetryDelay:     time.Second,
			RefetchOnFocus: true,
			RefetchOnMount: true,
		},
		Realtime: RealtimeConfig{
			Enabled:      true,
			Table:        "users",
			FilterColumn: "id",
			OpenTimeout:  10 * time.Second,
		},
		Listener: ListenerConfig{
			ResubscribeDelay: 0,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Realtime.Table = strings.TrimSpace(cfg.Realtime.Table)
	out.Realtime.FilterColumn = strings.TrimSpace(cfg.Realtime.FilterColumn)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	// Query
	if c.Query.StaleTime < 0 {
		return errors.New("Query StaleTime must be >= 0")
	}
	if c.Query.GCTime < 0 {
		return errors.New("Query GCTime must be >= 0")
	}
	if c.Query.Retry < 0 {
		return errors.New("Query Retry must be >= 0")
	}
	if c.Query.Retry > 0 && c.Query.RetryDelay < 0 {
		return errors.New("Query RetryDelay must be >= 0")
	}

	// Realtime
	if c.Realtime.Enabled {
		if c.Realtime.Table == "" {
			return errors.New("Realtime Table is required when realtime is enabled")
		}
		if c.Realtime.FilterColumn == "" {
			return errors.New("Realtime FilterColumn is required when realtime is enabled")
		}
		if c.Realtime.OpenTimeout <= 0 {
			return errors.New("Realtime OpenTimeout must be > 0")
		}
	}

	if c.Listener.ResubscribeDelay < 0 {
		return errors.New("Listener ResubscribeDelay must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
