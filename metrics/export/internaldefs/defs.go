package internaldefs

import (
	authcore "github.com/studioapi/authcore"
)

// CounterDef defines a public type used by authcore APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session controller.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginLockedOut, Name: "authcore_login_locked_out_total", Help: "Login attempts refused while the client lockout was active."},
	{ID: authcore.MetricLockoutTriggered, Name: "authcore_lockout_triggered_total", Help: "Client lockouts triggered by consecutive login failures."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logout operations."},
	{ID: authcore.MetricSessionExpired, Name: "authcore_session_expired_total", Help: "Sessions ended by a server rejection of the access token."},
	{ID: authcore.MetricSessionResumed, Name: "authcore_session_resumed_total", Help: "Sessions resumed from durable storage."},
	{ID: authcore.MetricBootstrapCompleted, Name: "authcore_bootstrap_completed_total", Help: "Completed first-run bootstrap flows."},
	{ID: authcore.MetricInviteAccepted, Name: "authcore_invite_accepted_total", Help: "Completed invitation acceptance flows."},
	{ID: authcore.MetricResetRequested, Name: "authcore_reset_requested_total", Help: "Password reset requests submitted."},
	{ID: authcore.MetricResetCompleted, Name: "authcore_reset_completed_total", Help: "Completed password reset flows."},
	{ID: authcore.MetricTwoFactorVerified, Name: "authcore_two_factor_verified_total", Help: "Successful two-factor enrollment verifications."},
	{ID: authcore.MetricBackupRegenerated, Name: "authcore_backup_regenerated_total", Help: "Backup-code regeneration operations."},
	{ID: authcore.MetricFlowExpired, Name: "authcore_flow_expired_total", Help: "Multi-step flows reset because a transient credential expired."},
	{ID: authcore.MetricServerSignal, Name: "authcore_server_signal_total", Help: "Out-of-band security signals received from the server."},
}
