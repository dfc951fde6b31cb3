package connectshare

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Query.StaleTime != 5*time.Minute || cfg.Query.GCTime != 10*time.Minute || cfg.Query.Retry != 1 {
		t.Fatalf("unexpected query defaults: %+v", cfg.Query)
	}
	if !cfg.Realtime.Enabled || cfg.Realtime.Table != "users" || cfg.Realtime.FilterColumn != "id" {
		t.Fatalf("unexpected realtime defaults: %+v", cfg.Realtime)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "zero stale time valid",
			mutate:    func(c *Config) { c.Query.StaleTime = 0 },
			wantValid: true,
		},
		{
			name:      "negative stale time invalid",
			mutate:    func(c *Config) { c.Query.StaleTime = -time.Second },
			wantValid: false,
		},
		{
			name:      "negative gc time invalid",
			mutate:    func(c *Config) { c.Query.GCTime = -time.Second },
			wantValid: false,
		},
		{
			name:      "negative retry invalid",
			mutate:    func(c *Config) { c.Query.Retry = -1 },
			wantValid: false,
		},
		{
			name: "negative retry delay invalid",
			mutate: func(c *Config) {
				c.Query.Retry = 2
				c.Query.RetryDelay = -time.Millisecond
			},
			wantValid: false,
		},
		{
			name:      "blank realtime table invalid",
			mutate:    func(c *Config) { c.Realtime.Table = "" },
			wantValid: false,
		},
		{
			name:      "blank filter column invalid",
			mutate:    func(c *Config) { c.Realtime.FilterColumn = "" },
			wantValid: false,
		},
		{
			name: "blank realtime table valid when disabled",
			mutate: func(c *Config) {
				c.Realtime.Enabled = false
				c.Realtime.Table = ""
			},
			wantValid: true,
		},
		{
			name:      "zero open timeout invalid",
			mutate:    func(c *Config) { c.Realtime.OpenTimeout = 0 },
			wantValid: false,
		},
		{
			name:      "negative resubscribe delay invalid",
			mutate:    func(c *Config) { c.Listener.ResubscribeDelay = -time.Second },
			wantValid: false,
		},
		{
			name: "audit buffer required when enabled",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "latency histograms require metrics",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Query.Retry = -1
	if _, err := New().WithConfig(cfg).WithRemote(&fakeRemote{}).Build(); err == nil {
		t.Fatal("expected Build to reject invalid config")
	}
}

func TestWithConfigTrimsRealtimeNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Realtime.Table = "  users "
	e, err := New().WithConfig(cfg).WithRemote(&fakeRemote{}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer e.Close()
	if got := e.Config().Realtime.Table; got != "users" {
		t.Fatalf("table = %q", got)
	}
}
