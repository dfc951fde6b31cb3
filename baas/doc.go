// Package baas is the hosted auth and data service the portal talks to, built on
// Redis.
//
// A [Backend] owns credentials (Argon2id), sessions (rotating refresh tokens with
// reuse detection, HS256 access tokens), the users profile table, and row-level
// realtime over Redis pub/sub. A [Client] is one device: it keeps that device's
// tokens and implements connectshare.RemoteService, so an Engine can be built
// directly on it.
//
// # Keys
//
//	<prefix>:email:<email>     -> user id
//	<prefix>:users:<id>        -> profile hash (id, email, full_name, user_type, status, avatar)
//	<prefix>:cred:<id>         -> PHC password hash
//	<prefix>:rt:<session id>   -> refresh hash (user_id, hash, expires_at)
//	<prefix>:us:<id>           -> set of session ids
//	<prefix>:signin:<email>    -> failed sign-ins in the current window
//	<prefix>:realtime:users:id=eq.<id>  (pub/sub channel)
package baas
