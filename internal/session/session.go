package session

import "time"

// Carrier describes where the session proof lives.
type Carrier int

const (
	// CarrierBearer keeps the access token in the store and attaches it per request.
	CarrierBearer Carrier = iota
	// CarrierCookie leaves the proof in the transport cookie jar; the store
	// never holds a credential.
	CarrierCookie
)

// String returns the string representation of the carrier
func (c Carrier) String() string {
	if c == CarrierCookie {
		return "cookie"
	}
	return "bearer"
}

// Origin records which event produced the current session.
type Origin string

const (
	OriginNone    Origin = ""
	OriginLogin   Origin = "login"
	OriginRefresh Origin = "refresh"
	// OriginRecord marks a session rehydrated from a local record and not yet
	// confirmed by the server.
	OriginRecord Origin = "record"
)

// Identity is the display data derived from a login.
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Session is the client's current belief about authentication state.
// The zero value is the unauthenticated session.
type Session struct {
	Authenticated bool
	Credential    string
	RefreshToken  string
	Identity      Identity

	// ExpiresAt is the access token expiry as claimed by the token itself.
	// It is advisory and never used for access decisions.
	ExpiresAt time.Time
	Origin    Origin
}

// IsZero reports whether s is the unauthenticated session.
func (s Session) IsZero() bool {
	return s == Session{}
}

// HasCredential reports whether a bearer credential is held.
func (s Session) HasCredential() bool {
	return s.Credential != ""
}

// Expired reports whether the advisory expiry is known and in the past.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
