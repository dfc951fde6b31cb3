// Package guard holds the route gates of the portal as pure decision functions.
//
// [EvaluateAuth] and [EvaluateRole] map a [connectshare.UserState] to a
// [Decision]: render, show a loading indicator, or redirect. Redirects are values;
// [Runner] executes them against a [Navigator], and the HTTP middleware turns them
// into responses.
//
// # What this package must NOT do
//
//   - Write the session cache.
//   - Redirect while the user is pending.
package guard
