// Package session owns the current-user model and the Session Cache.
//
// # Cache semantics
//
// [Cache] holds exactly one entry, the current user, keyed by [UserKey]. Write
// replaces it wholesale, Patch rewrites a present value in a single read-modify-write
// step and is a no-op when nobody is signed in. Subscribers run synchronously in
// mutation order. Fetch policy (stale time, garbage collection, retry, deduplication)
// is delegated to internal/query.
//
// # Architecture boundaries
//
// This package owns the [Session] model and the [Cache]. It does NOT talk to the
// remote auth service, decide which events replace the session, or evaluate route
// access. Those responsibilities belong to the Engine and the guard package.
//
// # What this package must NOT do
//
//   - Import connectshare, guard, or baas (no upward imports).
//   - Persist sessions across process restarts.
//   - Hand out pointers that alias the cached value.
package session
