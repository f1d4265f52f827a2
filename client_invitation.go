package authcore

import (
	"context"

	"github.com/studioapi/authcore/internal/flows"
)

// BeginInvite records the invitee's email and moves the invitation flow to
// code entry. The invitation itself is sent by an administrator; this
// transition is local.
//
// BeginInvite may return an error when input validation, dependency calls, or security checks fail.
// BeginInvite does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) BeginInvite(email string) error {
	if c == nil || c.invite == nil {
		return ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return ErrLocalMode
	}
	return c.invite.Begin(email)
}

// VerifyInviteCode submits the emailed invitation code. On success the
// granted role becomes visible through InviteRole.
//
// VerifyInviteCode may return an error when input validation, dependency calls, or security checks fail.
// VerifyInviteCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) VerifyInviteCode(ctx context.Context, code string) error {
	if c == nil || c.invite == nil {
		return ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return ErrLocalMode
	}
	return c.invite.VerifyCode(ctx, code)
}

// CompleteInviteSetup creates the collaborator account. Without two-factor
// enrollment the returned principal is authenticated immediately; with it,
// the principal is nil and the flow continues at VerifyInviteTwoFactor.
//
// CompleteInviteSetup may return an error when input validation, dependency calls, or security checks fail.
// CompleteInviteSetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) CompleteInviteSetup(ctx context.Context, req InviteSetupRequest) (*Principal, error) {
	if c == nil || c.invite == nil {
		return nil, ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return nil, ErrLocalMode
	}
	return c.invite.CompleteSetup(ctx, flows.InviteSetupRequest{
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		EnableTwoFactor: req.EnableTwoFactor,
	})
}

// VerifyInviteTwoFactor confirms the optional enrollment chosen during
// setup and commits the full session.
//
// VerifyInviteTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// VerifyInviteTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) VerifyInviteTwoFactor(ctx context.Context, code string) (*Principal, error) {
	if c == nil || c.invite == nil {
		return nil, ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return nil, ErrLocalMode
	}
	return c.invite.VerifyTwoFactorSetup(ctx, code)
}

// InviteState reports the invitation flow's current step.
//
// InviteState does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) InviteState() InviteState {
	if c == nil || c.invite == nil {
		return InviteCollectEmail
	}
	return InviteState(c.invite.State())
}

// InviteRole returns the granted role, empty until the invitation code
// verifies.
func (c *Client) InviteRole() string {
	if c == nil || c.invite == nil {
		return ""
	}
	return c.invite.Role()
}

// InviteSetup returns the optional enrollment session, nil unless the
// invitee opted in during setup.
func (c *Client) InviteSetup() *TwoFactorSetup {
	if c == nil || c.invite == nil {
		return nil
	}
	return twoFactorSetupFromFlow(c.invite.Setup())
}

// ResetInvite abandons the invitation flow and discards its stored
// credential.
func (c *Client) ResetInvite() {
	if c == nil || c.invite == nil {
		return
	}
	c.invite.Reset()
}
