package authcore

import (
	"context"

	"github.com/studioapi/authcore/internal/flows"
)

// Login submits credentials, with the optional second factor on the same
// submission. In local mode the session is already authenticated and the
// pinned principal is returned without any network call.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Principal, error) {
	if c == nil || c.login == nil {
		return nil, ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return c.sessions.Current().Principal, nil
	}
	return c.login.Submit(ctx, flows.LoginRequest{
		Email:      req.Email,
		Password:   req.Password,
		TOTPCode:   req.TOTPCode,
		BackupCode: req.BackupCode,
	})
}

// LoginState reports the login flow's current step.
//
// LoginState does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) LoginState() LoginState {
	if c == nil || c.login == nil {
		return LoginCollectCredentials
	}
	return LoginState(c.login.State())
}

// LoginLockout reports the client-side failed-attempt window. Advisory
// only; the server's lockout answer is authoritative and extends it.
//
// LoginLockout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) LoginLockout() LockoutState {
	if c == nil || c.login == nil {
		return LockoutState{}
	}
	snap := c.login.Lockout()
	now := c.now()
	out := LockoutState{
		Attempts:    snap.Attempts,
		LockedUntil: snap.LockedUntil,
	}
	if snap.Locked(now) {
		out.Remaining = snap.Remaining(now)
	}
	return out
}

// LoginMessage returns the most recent server-provided display message for
// the login form.
func (c *Client) LoginMessage() string {
	if c == nil || c.login == nil {
		return ""
	}
	return c.login.LastMessage()
}
