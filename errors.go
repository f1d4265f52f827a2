package authcore

import "errors"

var (
	// ErrValidation is an exported constant or variable used by the session controller.
	ErrValidation = errors.New("validation failed")
	// ErrAuthenticationFailed is an exported constant or variable used by the session controller.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrAccountLocked is an exported constant or variable used by the session controller.
	ErrAccountLocked = errors.New("account locked")
	// ErrLockedOut is an exported constant or variable used by the session controller.
	ErrLockedOut = errors.New("too many failed attempts")
	// ErrTwoFactorRequired is an exported constant or variable used by the session controller.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrBackupCodesUnacknowledged is an exported constant or variable used by the session controller.
	ErrBackupCodesUnacknowledged = errors.New("backup codes not yet acknowledged")
	// ErrSessionExpired is an exported constant or variable used by the session controller.
	ErrSessionExpired = errors.New("session expired")
	// ErrSystemNotInitialized is an exported constant or variable used by the session controller.
	ErrSystemNotInitialized = errors.New("system not initialized")
	// ErrRateLimited is an exported constant or variable used by the session controller.
	ErrRateLimited = errors.New("rate limited")
	// ErrNetworkUnreachable is an exported constant or variable used by the session controller.
	ErrNetworkUnreachable = errors.New("backend unreachable")
	// ErrServer is an exported constant or variable used by the session controller.
	ErrServer = errors.New("server error")
	// ErrFlowExpired is an exported constant or variable used by the session controller.
	ErrFlowExpired = errors.New("flow credential expired")
	// ErrFlowBusy is an exported constant or variable used by the session controller.
	ErrFlowBusy = errors.New("flow transition already in progress")
	// ErrLocalMode is an exported constant or variable used by the session controller.
	ErrLocalMode = errors.New("operation not available in local mode")
	// ErrNotAuthenticated is an exported constant or variable used by the session controller.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrClientNotReady is an exported constant or variable used by the session controller.
	ErrClientNotReady = errors.New("client not initialized")
)
