package session

// Role is the coarse trust level reported by the remote auth service.
type Role string

const (
	// RoleAnonymous is reported when no valid access token exists.
	RoleAnonymous Role = "anonymous"
	// RoleAuthenticated is reported while a valid, non-expired access token exists.
	RoleAuthenticated Role = "authenticated"
)

// UserType is the marketplace role assigned to an account at signup.
type UserType string

const (
	// UserTypeProvider lists clinic space for rent.
	UserTypeProvider UserType = "provider"
	// UserTypeDoctor rents clinic space.
	UserTypeDoctor UserType = "doctor"
	// UserTypeAdmin operates the marketplace.
	UserTypeAdmin UserType = "admin"
)

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeProvider, UserTypeDoctor, UserTypeAdmin:
		return true
	}
	return false
}

// AccountStatus is the profile activation state.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusInactive AccountStatus = "inactive"
)

// Valid reports whether s is one of the known statuses.
func (s AccountStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Metadata holds the profile attributes carried with an authenticated session.
type Metadata struct {
	FullName string        `json:"full_name,omitempty"`
	UserType UserType      `json:"user_type,omitempty"`
	Status   AccountStatus `json:"status,omitempty"`
	Avatar   string        `json:"avatar,omitempty"`
}

// Session is the authoritative identity record for the current client.
//
// Metadata is non-nil only when Role is [RoleAuthenticated]. A nil *Session means
// nobody is signed in.
type Session struct {
	ID       string    `json:"id"`
	Email    string    `json:"email,omitempty"`
	Role     Role      `json:"role"`
	Metadata *Metadata `json:"user_metadata,omitempty"`
}

// Clone returns a deep copy of s. Clone of nil is nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Metadata != nil {
		md := *s.Metadata
		out.Metadata = &md
	}
	return &out
}

// Authenticated reports whether s carries the authenticated role.
func (s *Session) Authenticated() bool {
	return s != nil && s.Role == RoleAuthenticated
}

// UserType returns the profile user type, or "" when unknown.
func (s *Session) UserType() UserType {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return s.Metadata.UserType
}

// Status returns the profile status, or "" when unknown.
func (s *Session) Status() AccountStatus {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return s.Metadata.Status
}

// ProfilePatch carries the realtime-patchable profile fields. Empty fields mean
// "not present in the event".
type ProfilePatch struct {
	FullName string
	UserType UserType
	Status   AccountStatus
}

// Apply merges p into s, keeping the previous value for every field p leaves empty.
// Fields outside the patchable set are never touched.
func (p ProfilePatch) Apply(s Session) Session {
	md := Metadata{}
	if s.Metadata != nil {
		md = *s.Metadata
	}
	if p.FullName != "" {
		md.FullName = p.FullName
	}
	if p.UserType != "" {
		md.UserType = p.UserType
	}
	if p.Status != "" {
		md.Status = p.Status
	}
	s.Metadata = &md
	return s
}

// For returns a [Cache.Patch] function that applies p only to the session of
// userID and declines every other session.
func (p ProfilePatch) For(userID string) func(Session) (Session, bool) {
	return func(s Session) (Session, bool) {
		if s.ID != userID {
			return s, false
		}
		return p.Apply(s), true
	}
}
