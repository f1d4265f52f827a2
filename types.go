package authcore

import (
	"time"

	"github.com/studioapi/authcore/internal/flows"
	"github.com/studioapi/authcore/session"
)

// Principal is the authenticated identity carried by the session.
//
//	Docs: docs/session.md
type Principal = session.Principal

// Session is the current lifecycle snapshot. AccessToken is non-empty
// exactly when Status is [session.Authenticated].
type Session = session.Session

// SessionStatus represents the lifecycle state of the session record.
type SessionStatus = session.Status

const (
	// StatusUnauthenticated is an exported constant or variable used by the session controller.
	StatusUnauthenticated = session.Unauthenticated
	// StatusAuthenticating is an exported constant or variable used by the session controller.
	StatusAuthenticating = session.Authenticating
	// StatusAuthenticated is an exported constant or variable used by the session controller.
	StatusAuthenticated = session.Authenticated
	// StatusFailed is an exported constant or variable used by the session controller.
	StatusFailed = session.Failed
)

// EndReason explains why a session ended.
type EndReason = session.EndReason

const (
	// EndReasonLogout is an exported constant or variable used by the session controller.
	EndReasonLogout = session.EndReasonLogout
	// EndReasonExpired is an exported constant or variable used by the session controller.
	EndReasonExpired = session.EndReasonExpired
	// EndReasonReplaced is an exported constant or variable used by the session controller.
	EndReasonReplaced = session.EndReasonReplaced
)

// SystemStatus is the backend's initialization report, fetched before any
// credential is sent.
type SystemStatus struct {
	Locked            bool
	AdminExists       bool
	AppMode           string
	SMTPConfigured    bool
	RequiresBootstrap bool
}

// TwoFactorSetup is a client-held enrollment session. BackupCodes are shown
// exactly once; a regenerated batch fully replaces the previous one.
type TwoFactorSetup struct {
	ProvisioningURI string
	Secret          string
	BackupCodes     []string
	Verified        bool
	Acknowledged    bool
}

// LockoutState reports the client-side failed-attempt window for display.
// It is advisory; the server's own lockout is authoritative.
type LockoutState struct {
	Attempts    int
	LockedUntil time.Time
	Remaining   time.Duration
}

/*
====================================
FLOW STATES
====================================
*/

// LoginState represents the login flow's current step.
type LoginState uint8

const (
	// LoginCollectCredentials is an exported constant or variable used by the session controller.
	LoginCollectCredentials LoginState = iota
	// LoginAuthenticated is an exported constant or variable used by the session controller.
	LoginAuthenticated
	// LoginFailed is an exported constant or variable used by the session controller.
	LoginFailed
	// LoginLocked is an exported constant or variable used by the session controller.
	LoginLocked
)

// BootstrapState represents the first-run flow's current step.
type BootstrapState uint8

const (
	// BootstrapCollectTokenAndEmail is an exported constant or variable used by the session controller.
	BootstrapCollectTokenAndEmail BootstrapState = iota
	// BootstrapAwaitingEmailCode is an exported constant or variable used by the session controller.
	BootstrapAwaitingEmailCode
	// BootstrapSetAdminPassword is an exported constant or variable used by the session controller.
	BootstrapSetAdminPassword
	// BootstrapTwoFactorSetup is an exported constant or variable used by the session controller.
	BootstrapTwoFactorSetup
	// BootstrapComplete is an exported constant or variable used by the session controller.
	BootstrapComplete
)

// InviteState represents the invitation flow's current step.
type InviteState uint8

const (
	// InviteCollectEmail is an exported constant or variable used by the session controller.
	InviteCollectEmail InviteState = iota
	// InviteAwaitingCode is an exported constant or variable used by the session controller.
	InviteAwaitingCode
	// InviteRoleKnown is an exported constant or variable used by the session controller.
	InviteRoleKnown
	// InviteTwoFactorSetup is an exported constant or variable used by the session controller.
	InviteTwoFactorSetup
	// InviteComplete is an exported constant or variable used by the session controller.
	InviteComplete
)

// ResetState represents the password recovery flow's current step.
type ResetState uint8

const (
	// ResetCollectEmail is an exported constant or variable used by the session controller.
	ResetCollectEmail ResetState = iota
	// ResetAwaitingCode is an exported constant or variable used by the session controller.
	ResetAwaitingCode
	// ResetSetPassword is an exported constant or variable used by the session controller.
	ResetSetPassword
	// ResetComplete is an exported constant or variable used by the session controller.
	ResetComplete
)

// TwoFactorState represents the enrollment management flow's current step.
type TwoFactorState uint8

const (
	// TwoFactorIdle is an exported constant or variable used by the session controller.
	TwoFactorIdle TwoFactorState = iota
	// TwoFactorProvisioned is an exported constant or variable used by the session controller.
	TwoFactorProvisioned
	// TwoFactorAwaitingAck is an exported constant or variable used by the session controller.
	TwoFactorAwaitingAck
)

/*
====================================
REQUESTS
====================================
*/

// LoginRequest carries a login submission. When the account has two-factor
// enabled, TOTPCode or BackupCode must accompany the same submission.
type LoginRequest struct {
	Email      string
	Password   string
	TOTPCode   string
	BackupCode string
}

// BootstrapBeginRequest starts first-run provisioning with the deployment's
// bootstrap token and the future admin's email.
type BootstrapBeginRequest struct {
	Token string
	Email string
}

// InviteSetupRequest finishes collaborator account creation.
type InviteSetupRequest struct {
	Password        string
	ConfirmPassword string
	EnableTwoFactor bool
}

/*
====================================
CONVERSIONS
====================================
*/

func systemStatusFromFlow(s *flows.SystemStatus) *SystemStatus {
	if s == nil {
		return nil
	}
	return &SystemStatus{
		Locked:            s.Locked,
		AdminExists:       s.AdminExists,
		AppMode:           s.AppMode,
		SMTPConfigured:    s.SMTPConfigured,
		RequiresBootstrap: s.RequiresBootstrap,
	}
}

func twoFactorSetupFromFlow(s *flows.TwoFactorSetup) *TwoFactorSetup {
	if s == nil {
		return nil
	}
	return &TwoFactorSetup{
		ProvisioningURI: s.ProvisioningURI,
		Secret:          s.Secret,
		BackupCodes:     append([]string(nil), s.BackupCodes...),
		Verified:        s.Verified,
		Acknowledged:    s.Acknowledged,
	}
}
