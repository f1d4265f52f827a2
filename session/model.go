package session

// Status is the lifecycle state of the current session.
type Status uint8

const (
	// Unauthenticated means no session exists.
	Unauthenticated Status = iota
	// Authenticating means a login-class flow has a call outstanding.
	Authenticating
	// Authenticated means an access token is held.
	Authenticated
	// Failed means the last authentication attempt ended in a terminal
	// error; no token is held.
	Failed
)

func (s Status) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Principal is the authenticated user's identity and role snapshot. It is
// immutable; a new snapshot replaces it only on an explicit re-fetch.
type Principal struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	DisplayName        string `json:"display_name,omitempty"`
	Role               string `json:"role"`
	TwoFactorEnabled   bool   `json:"two_factor_enabled"`
	MustChangePassword bool   `json:"must_change_password"`
}

// Session is the value snapshot returned by [Store.Current].
//
// Invariant: AccessToken is non-empty iff Status is Authenticated.
type Session struct {
	Principal   *Principal
	AccessToken string
	Status      Status
}

// EndReason labels why a session ended, carried on the session-ended
// broadcast.
type EndReason string

const (
	// EndReasonLogout is a user-initiated teardown.
	EndReasonLogout EndReason = "logout"
	// EndReasonExpired is a server-reported token expiry.
	EndReasonExpired EndReason = "expired"
	// EndReasonReplaced is a teardown caused by a new session being set.
	EndReasonReplaced EndReason = "replaced"
)
