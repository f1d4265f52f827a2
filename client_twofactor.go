package authcore

import "context"

// ProvisionTwoFactor stages a new authenticator secret for the
// authenticated account and returns the provisioning payload. Enrollment
// activates only after VerifyTwoFactor confirms a code. Not available in
// local mode.
//
// ProvisionTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// ProvisionTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) ProvisionTwoFactor(ctx context.Context) (*TwoFactorSetup, error) {
	if c == nil || c.twofactor == nil {
		return nil, ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return nil, ErrLocalMode
	}
	setup, err := c.twofactor.Provision(ctx)
	if err != nil {
		return nil, err
	}
	return twoFactorSetupFromFlow(setup), nil
}

// VerifyTwoFactor confirms the staged secret and activates enrollment. It
// returns the definitive backup codes, shown exactly once; the flow then
// waits for AcknowledgeBackupCodes.
//
// VerifyTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// VerifyTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) VerifyTwoFactor(ctx context.Context, code string) ([]string, error) {
	if c == nil || c.twofactor == nil {
		return nil, ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return nil, ErrLocalMode
	}
	return c.twofactor.VerifyCode(ctx, code)
}

// RegenerateBackupCodes replaces the full backup code set. The previous
// codes stop working immediately and the new batch must be acknowledged.
//
// RegenerateBackupCodes may return an error when input validation, dependency calls, or security checks fail.
// RegenerateBackupCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) RegenerateBackupCodes(ctx context.Context) ([]string, error) {
	if c == nil || c.twofactor == nil {
		return nil, ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return nil, ErrLocalMode
	}
	return c.twofactor.RegenerateBackupCodes(ctx)
}

// AcknowledgeBackupCodes records that the user stored the displayed codes
// and drops them from the client.
//
// AcknowledgeBackupCodes may return an error when input validation, dependency calls, or security checks fail.
// AcknowledgeBackupCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) AcknowledgeBackupCodes() error {
	if c == nil || c.twofactor == nil {
		return ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return ErrLocalMode
	}
	return c.twofactor.AcknowledgeBackupCodes()
}

// DisableTwoFactor turns enrollment off. The server requires the account
// password and, when supplied, also checks a current authenticator code.
//
// DisableTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// DisableTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) DisableTwoFactor(ctx context.Context, password, totpCode string) error {
	if c == nil || c.twofactor == nil {
		return ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return ErrLocalMode
	}
	return c.twofactor.Disable(ctx, password, totpCode)
}

// CancelTwoFactorSetup abandons an unconfirmed provisioning.
func (c *Client) CancelTwoFactorSetup() {
	if c == nil || c.twofactor == nil {
		return
	}
	c.twofactor.Cancel()
}

// TwoFactorState reports the enrollment flow's current step, including a
// pending step recovered after a restart.
//
// TwoFactorState does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) TwoFactorState() TwoFactorState {
	if c == nil || c.twofactor == nil {
		return TwoFactorIdle
	}
	return TwoFactorState(c.twofactor.State())
}

// TwoFactorSetupSession returns the in-progress enrollment session, nil
// when idle.
func (c *Client) TwoFactorSetupSession() *TwoFactorSetup {
	if c == nil || c.twofactor == nil {
		return nil
	}
	return twoFactorSetupFromFlow(c.twofactor.Setup())
}
