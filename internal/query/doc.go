// Package query is a small keyed query cache modelled on client-side data
// libraries: stale-while-revalidate, deduplicated in-flight fetches, automatic
// retry with backoff, and garbage collection of entries nobody observes.
package query
