package internaldefs

import (
	connectshare "github.com/alinasr783/connect-share"
)

// CounterDef maps one engine counter to its exported name.
type CounterDef struct {
	ID   connectshare.MetricID
	Name string
	Help string
}

// HistogramDef maps one engine histogram to its exported name.
type HistogramDef struct {
	ID   connectshare.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: connectshare.MetricSessionFetch, Name: "connectshare_session_fetch_total", Help: "Current-session fetch sequences."},
	{ID: connectshare.MetricSessionFetchFailure, Name: "connectshare_session_fetch_failure_total", Help: "Current-session fetch sequences that failed."},
	{ID: connectshare.MetricSessionFetchRetry, Name: "connectshare_session_fetch_retry_total", Help: "Automatic current-session fetch retries."},
	{ID: connectshare.MetricAuthSignedIn, Name: "connectshare_auth_signed_in_total", Help: "SIGNED_IN events applied to the session cache."},
	{ID: connectshare.MetricAuthSignedOut, Name: "connectshare_auth_signed_out_total", Help: "SIGNED_OUT events applied to the session cache."},
	{ID: connectshare.MetricAuthTokenRefreshed, Name: "connectshare_auth_token_refreshed_total", Help: "TOKEN_REFRESHED events applied to the session cache."},
	{ID: connectshare.MetricAuthEventIgnored, Name: "connectshare_auth_event_ignored_total", Help: "Auth events that do not replace the session."},
	{ID: connectshare.MetricListenerSubscribeFailure, Name: "connectshare_listener_subscribe_failure_total", Help: "Failed auth-state subscriptions."},
	{ID: connectshare.MetricProfilePatched, Name: "connectshare_profile_patched_total", Help: "Realtime profile patches applied."},
	{ID: connectshare.MetricPatchOnAbsentSession, Name: "connectshare_patch_on_absent_session_total", Help: "Realtime patches dropped because no session was cached."},
	{ID: connectshare.MetricRealtimeOpened, Name: "connectshare_realtime_opened_total", Help: "Profile realtime channels opened."},
	{ID: connectshare.MetricRealtimeOpenFailure, Name: "connectshare_realtime_open_failure_total", Help: "Profile realtime channels that failed to open."},
	{ID: connectshare.MetricRealtimeClosed, Name: "connectshare_realtime_closed_total", Help: "Profile realtime channels closed."},
	{ID: connectshare.MetricTeardownError, Name: "connectshare_teardown_error_total", Help: "Swallowed unsubscribe failures."},
	{ID: connectshare.MetricFocusRefetch, Name: "connectshare_focus_refetch_total", Help: "Refetches triggered by focus."},
	{ID: connectshare.MetricMountRefetch, Name: "connectshare_mount_refetch_total", Help: "Refetches triggered by a consumer mount."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: connectshare.MetricFetchLatency, Name: "connectshare_session_fetch_latency_seconds", Help: "Current-session fetch latency histogram."},
}

// HistogramBounds are the upper bounds of the engine's latency buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as instrument name suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
