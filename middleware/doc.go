// Package middleware executes the route gates over HTTP.
//
// # Gates
//
//   - [RequireAuthenticated]: signed-in users only; others are sent to login (302).
//   - [RequireRole]: one user type only; others are sent to their home (303).
//   - [RouteDashboard]: the generic dashboard router.
//
// Each gate waits up to Options.PendingWait for a pending user, then renders,
// serves the loading response with a Refresh header, or redirects. Rendered
// requests carry the resolved state, see [UserFromContext].
//
// # What this package must NOT do
//
//   - Decide anything itself; decisions come from package guard.
//   - Write the session cache.
package middleware
