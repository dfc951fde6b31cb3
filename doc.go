// Package connectshare keeps the current user of the connect-share clinic-rental
// marketplace in sync with the hosted auth/data service and feeds the route gates
// that decide what a visitor may see.
//
// Data flows one way: remote service, auth listener, session cache, user
// accessor, route gates. [Builder.Build] wires the pieces into an [Engine]; the
// engine is the single owner of the cache, and every method is safe to call from
// multiple goroutines.
//
// # Architecture boundaries
//
// connectshare is the public surface. It exposes [Engine], [Builder], [Config],
// [UserState] and the [RemoteService] contract. The cache itself lives in
// package session, the fetch policy in internal/query, gate decisions in package
// guard, and the Redis-backed remote service in package baas.
//
// Only two paths write the cached user: the auth listener replaces it wholesale
// on sign-in, sign-out and token refresh, and the realtime channel patches the
// full name, user type and status of the signed-in user. Readers never write.
//
// # What this package must NOT do
//
//   - Return fetch or teardown errors to callers of [Engine.CurrentUser]; they are
//     reported in [UserState.Error] or logged.
//   - Open more than one realtime channel at a time.
//   - Import package baas (the remote service is injected).
package connectshare
