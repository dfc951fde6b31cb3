package connectshare

import "errors"

var (
	// ErrSessionFetch wraps failures loading the current session. It is surfaced in
	// UserState.Error and never returned across the guard boundary.
	ErrSessionFetch = errors.New("session fetch failed")
	// ErrSubscriptionTeardown wraps failures closing a realtime channel or auth
	// subscription. It is logged and discarded.
	ErrSubscriptionTeardown = errors.New("subscription teardown failed")
	// ErrPatchOnAbsentSession is reported when a realtime patch arrives while no
	// session is cached. The patch is dropped.
	ErrPatchOnAbsentSession = errors.New("patch on absent session")
	// ErrRealtimeOpen wraps failures opening the profile realtime channel.
	ErrRealtimeOpen = errors.New("realtime channel open failed")
	// ErrListenerSubscribe wraps failures opening the auth-state change stream.
	ErrListenerSubscribe = errors.New("auth listener subscribe failed")
	// ErrRemoteRequired is returned by Build when no remote service was configured.
	ErrRemoteRequired = errors.New("remote service required")
	// ErrEngineNotReady is returned when a nil or unbuilt engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")
)
