package connectshare

import (
	"context"
	"time"

	"github.com/alinasr783/connect-share/session"
)

// Session is the current-user record. See [session.Session].
type Session = session.Session

// Metadata is the profile attribute set carried by a [Session].
type Metadata = session.Metadata

// UserType is the marketplace role of an account.
type UserType = session.UserType

// AccountStatus is the profile activation state.
type AccountStatus = session.AccountStatus

const (
	UserTypeProvider = session.UserTypeProvider
	UserTypeDoctor   = session.UserTypeDoctor
	UserTypeAdmin    = session.UserTypeAdmin

	StatusActive   = session.StatusActive
	StatusInactive = session.StatusInactive
)

// UserState is what [Engine.CurrentUser] reports. Every derived flag is false while
// the user is pending or absent.
type UserState struct {
	User            *Session
	IsPending       bool
	IsAuthenticated bool
	IsActive        bool
	IsDoctor        bool
	Error           error
}

func userStateFrom(snap session.Snapshot) UserState {
	st := UserState{
		IsPending: snap.Pending(),
		Error:     snap.Err,
	}
	if st.IsPending {
		return st
	}
	u := snap.User
	st.User = u
	st.IsAuthenticated = u.Authenticated()
	st.IsActive = u.Status() == session.StatusActive
	st.IsDoctor = u.UserType() == session.UserTypeDoctor
	return st
}

// AuthEventKind names an auth-state transition reported by the remote service.
type AuthEventKind string

const (
	AuthEventInitialSession   AuthEventKind = "INITIAL_SESSION"
	AuthEventSignedIn         AuthEventKind = "SIGNED_IN"
	AuthEventSignedOut        AuthEventKind = "SIGNED_OUT"
	AuthEventTokenRefreshed   AuthEventKind = "TOKEN_REFRESHED"
	AuthEventUserUpdated      AuthEventKind = "USER_UPDATED"
	AuthEventPasswordRecovery AuthEventKind = "PASSWORD_RECOVERY"
)

// replacesSession reports whether events of this kind overwrite the cached user.
func (k AuthEventKind) replacesSession() bool {
	switch k {
	case AuthEventSignedIn, AuthEventSignedOut, AuthEventTokenRefreshed:
		return true
	}
	return false
}

// AuthSession is the token bundle delivered with auth events.
type AuthSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *Session
}

// AuthEvent is one auth-state transition. Session is nil for sign-out.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *AuthSession
}

func (e AuthEvent) user() *Session {
	if e.Session == nil {
		return nil
	}
	return e.Session.User
}

// AuthSubscription is a live auth-state change stream. Events is closed after
// Unsubscribe.
type AuthSubscription interface {
	Events() <-chan AuthEvent
	Unsubscribe() error
}

// RowEventKind is the kind of a realtime row change.
type RowEventKind string

const (
	RowInsert RowEventKind = "INSERT"
	RowUpdate RowEventKind = "UPDATE"
	RowDelete RowEventKind = "DELETE"
)

// RowFilter scopes a realtime subscription to rows whose Column equals Value.
type RowFilter struct {
	Column string
	Value  string
}

// String renders the filter in eq form, e.g. "id=eq.42".
func (f RowFilter) String() string {
	return f.Column + "=eq." + f.Value
}

// ProfileRow is one row of the users profile table. Empty fields were absent
// from the change payload.
type ProfileRow struct {
	ID       string        `json:"id"`
	Email    string        `json:"email,omitempty"`
	FullName string        `json:"full_name,omitempty"`
	UserType UserType      `json:"user_type,omitempty"`
	Status   AccountStatus `json:"status,omitempty"`
	Avatar   string        `json:"avatar,omitempty"`
}

// RowEvent is one realtime change delivered on a [RealtimeChannel].
type RowEvent struct {
	Kind            RowEventKind
	Table           string
	Record          ProfileRow
	Old             ProfileRow
	CommitTimestamp time.Time
}

// RealtimeChannel is a live row-change feed. Events is closed after Unsubscribe.
type RealtimeChannel interface {
	Events() <-chan RowEvent
	Unsubscribe() error
}

// RemoteService is the contract the engine consumes from the hosted auth/data
// backend. Implementations must be safe for concurrent use.
//
//	Implemented by: baas.Client
type RemoteService interface {
	// GetCurrentSession returns the signed-in user, or nil when nobody is signed in.
	GetCurrentSession(ctx context.Context) (*Session, error)
	// OnAuthStateChange opens an auth-state change stream.
	OnAuthStateChange(ctx context.Context) (AuthSubscription, error)
	// SubscribeToRowUpdate opens a row-change feed on table scoped by filter. It
	// returns once the feed is live or ctx ends.
	SubscribeToRowUpdate(ctx context.Context, table string, filter RowFilter) (RealtimeChannel, error)
}
