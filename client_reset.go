package authcore

import "context"

// BeginPasswordReset requests a recovery code for the email. The outcome is
// uniform whether or not the address holds an account, so the flow cannot
// probe for registered emails.
//
// BeginPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// BeginPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) BeginPasswordReset(ctx context.Context, email string) error {
	if c == nil || c.reset == nil {
		return ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return ErrLocalMode
	}
	return c.reset.Begin(ctx, email)
}

// VerifyResetCode exchanges the emailed code for a reset token, held
// durably so the flow survives a restart.
//
// VerifyResetCode may return an error when input validation, dependency calls, or security checks fail.
// VerifyResetCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) VerifyResetCode(ctx context.Context, code string) error {
	if c == nil || c.reset == nil {
		return ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return ErrLocalMode
	}
	return c.reset.VerifyCode(ctx, code)
}

// SubmitNewPassword replaces the account password under the reset token.
// The flow completes without logging the user in.
//
// SubmitNewPassword may return an error when input validation, dependency calls, or security checks fail.
// SubmitNewPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) SubmitNewPassword(ctx context.Context, password, confirm string) error {
	if c == nil || c.reset == nil {
		return ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return ErrLocalMode
	}
	return c.reset.SubmitNewPassword(ctx, password, confirm)
}

// PasswordResetState reports the recovery flow's current step.
//
// PasswordResetState does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) PasswordResetState() ResetState {
	if c == nil || c.reset == nil {
		return ResetCollectEmail
	}
	return ResetState(c.reset.State())
}

// ResetPasswordReset abandons the recovery flow and discards its stored
// credential.
func (c *Client) ResetPasswordReset() {
	if c == nil || c.reset == nil {
		return
	}
	c.reset.Reset()
}
