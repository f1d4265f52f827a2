package authcore

import (
	"context"

	"github.com/studioapi/authcore/internal/flows"
)

// SystemStatus fetches the backend's initialization report. It is the first
// call a fresh client makes to decide between bootstrap and login. Local
// mode answers without any network call.
//
// SystemStatus may return an error when input validation, dependency calls, or security checks fail.
// SystemStatus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	if c == nil || c.bootstrap == nil {
		return nil, ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return &SystemStatus{
			AdminExists:       true,
			AppMode:           string(ModeLocal),
			RequiresBootstrap: false,
		}, nil
	}
	status, err := c.bootstrap.SystemStatus(ctx)
	if err != nil {
		return nil, err
	}
	return systemStatusFromFlow(status), nil
}

// BeginBootstrap validates the deployment's bootstrap token and requests
// the emailed verification code for the future admin.
//
// BeginBootstrap may return an error when input validation, dependency calls, or security checks fail.
// BeginBootstrap does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) BeginBootstrap(ctx context.Context, req BootstrapBeginRequest) error {
	if c == nil || c.bootstrap == nil {
		return ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return ErrLocalMode
	}
	return c.bootstrap.Begin(ctx, flows.BootstrapBeginRequest{
		Token: req.Token,
		Email: req.Email,
	})
}

// VerifyBootstrapCode exchanges the emailed code for a temporary setup
// token. The token is held durably so the flow survives a restart.
//
// VerifyBootstrapCode may return an error when input validation, dependency calls, or security checks fail.
// VerifyBootstrapCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) VerifyBootstrapCode(ctx context.Context, code string) error {
	if c == nil || c.bootstrap == nil {
		return ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return ErrLocalMode
	}
	return c.bootstrap.VerifyEmailCode(ctx, code)
}

// SetAdminPassword sets the first admin password and receives the
// two-factor provisioning payload.
//
// SetAdminPassword may return an error when input validation, dependency calls, or security checks fail.
// SetAdminPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) SetAdminPassword(ctx context.Context, password, confirm string) (*TwoFactorSetup, error) {
	if c == nil || c.bootstrap == nil {
		return nil, ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return nil, ErrLocalMode
	}
	setup, err := c.bootstrap.SetAdminPassword(ctx, password, confirm)
	if err != nil {
		return nil, err
	}
	return twoFactorSetupFromFlow(setup), nil
}

// VerifyBootstrapTwoFactor confirms the admin's authenticator with its
// first code and commits the full session. Terminal bootstrap step.
//
// VerifyBootstrapTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// VerifyBootstrapTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) VerifyBootstrapTwoFactor(ctx context.Context, code string) (*Principal, error) {
	if c == nil || c.bootstrap == nil {
		return nil, ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return nil, ErrLocalMode
	}
	return c.bootstrap.VerifyTwoFactorSetup(ctx, code)
}

// BootstrapState reports the first-run flow's current step, including a
// step recovered from a stored setup credential after a restart.
//
// BootstrapState does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) BootstrapState() BootstrapState {
	if c == nil || c.bootstrap == nil {
		return BootstrapCollectTokenAndEmail
	}
	return BootstrapState(c.bootstrap.State())
}

// BootstrapSetup returns the in-progress two-factor setup session for
// re-display, nil before the password step completes.
func (c *Client) BootstrapSetup() *TwoFactorSetup {
	if c == nil || c.bootstrap == nil {
		return nil
	}
	return twoFactorSetupFromFlow(c.bootstrap.Setup())
}

// ResetBootstrap abandons the first-run flow and discards its stored
// credentials.
func (c *Client) ResetBootstrap() {
	if c == nil || c.bootstrap == nil {
		return
	}
	c.bootstrap.Reset()
}
