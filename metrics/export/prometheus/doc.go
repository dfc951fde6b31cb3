// Package prometheus renders engine metrics in Prometheus text exposition format.
//
// [NewExporter] accepts any number of engines (the portal server runs one per
// browser session) and sums their counters. Counter names are prefixed
// connectshare_*_total; the single histogram is
// connectshare_session_fetch_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
