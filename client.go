package authcore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/studioapi/authcore/api"
	"github.com/studioapi/authcore/internal/flows"
	"github.com/studioapi/authcore/internal/stores"
	"github.com/studioapi/authcore/permission"
	"github.com/studioapi/authcore/session"
	"github.com/studioapi/authcore/storage"
)

// localModeToken is the fixed access token the backend issues when running
// against a local single-user deployment.
const localModeToken = "local-mode-token"

// Client defines a public type used by authcore APIs.
//
// Client instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Client struct {
	config     Config
	api        *api.Client
	sessions   *session.Store
	transients *stores.TransientStore
	store      storage.KV
	ownsStore  bool
	evaluator  *permission.Evaluator
	metrics    *Metrics
	audit      *auditDispatcher
	now        func() time.Time
	deps       flows.Deps

	login     *flows.LoginMachine
	bootstrap *flows.BootstrapMachine
	invite    *flows.InviteMachine
	reset     *flows.ResetMachine
	twofactor *flows.TwoFactorMachine
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.audit != nil {
		c.audit.Close()
	}
	if c.ownsStore && c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Mode reports the configured deployment mode.
func (c *Client) Mode() Mode {
	if c == nil {
		return ModeHosted
	}
	return c.config.Mode
}

// Session returns the current lifecycle snapshot.
//
// Session does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Session() Session {
	if c == nil || c.sessions == nil {
		return Session{}
	}
	return c.sessions.Current()
}

// AccessToken returns the current token, empty unless authenticated.
//
// AccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) AccessToken() string {
	if c == nil || c.sessions == nil {
		return ""
	}
	return c.sessions.Token()
}

// OnSessionEnded registers a callback invoked after the session ends for
// any reason (logout, server-reported expiry, replacement).
//
// OnSessionEnded does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) OnSessionEnded(fn func(EndReason)) {
	if c == nil || c.sessions == nil {
		return
	}
	c.sessions.OnSessionEnded(fn)
}

// Resume restores the session from the durable store without any network
// call. A missing or expired stored token resolves to Unauthenticated; the
// restored principal stays nil until Whoami refreshes it.
//
// Resume may return an error when input validation, dependency calls, or security checks fail.
// Resume does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Resume() (bool, error) {
	if c == nil || c.sessions == nil {
		return false, ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return true, nil
	}
	resumed, err := c.sessions.Resume()
	if resumed {
		c.metricInc(MetricSessionResumed)
		c.emit(AuditEvent{EventType: EventSessionResumed, Success: true})
	}
	return resumed, err
}

// Whoami fetches the authenticated principal and its effective permission
// names from the server and refreshes the session's principal.
//
// Whoami may return an error when input validation, dependency calls, or security checks fail.
// Whoami does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Whoami(ctx context.Context) (*Principal, []string, error) {
	if c == nil || c.sessions == nil {
		return nil, nil, ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		current := c.sessions.Current()
		return current.Principal, c.PermissionNames(), nil
	}
	if c.sessions.Token() == "" {
		return nil, nil, ErrNotAuthenticated
	}

	resp, err := c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: "/api/auth/me"})
	if err != nil {
		return nil, nil, c.classify(err)
	}

	var payload struct {
		User struct {
			ID                     json.Number `json:"id"`
			Email                  string      `json:"email"`
			Name                   string      `json:"name"`
			Role                   string      `json:"role"`
			TwoFactorEnabled       bool        `json:"two_factor_enabled"`
			RequiresPasswordChange bool        `json:"requires_password_change"`
		} `json:"user"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: undecodable whoami payload: %v", ErrServer, err)
	}

	principal := &Principal{
		ID:                 payload.User.ID.String(),
		Email:              payload.User.Email,
		DisplayName:        payload.User.Name,
		Role:               payload.User.Role,
		TwoFactorEnabled:   payload.User.TwoFactorEnabled,
		MustChangePassword: payload.User.RequiresPasswordChange,
	}
	c.sessions.SetPrincipal(principal)
	return principal, payload.Permissions, nil
}

// Logout revokes the session server-side, then clears the durable entry and
// every transient flow credential. The local clear proceeds even when the
// revoke call fails; a dead backend must not pin a session on disk.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil || c.sessions == nil {
		return ErrClientNotReady
	}
	if c.config.Mode == ModeLocal {
		return nil
	}

	if c.sessions.Token() != "" && c.api != nil {
		_, _ = c.api.Do(ctx, api.Request{Method: http.MethodPost, Path: "/api/auth/logout"})
	}

	c.transients.DiscardAll()
	err := c.sessions.Clear(session.EndReasonLogout)
	c.metricInc(MetricLogout)
	c.emit(AuditEvent{EventType: EventLogout, Success: err == nil})
	return err
}

/*
====================================
PERMISSIONS
====================================
*/

// EffectiveRole returns the role permission checks run against. Pinned to
// admin in local mode.
func (c *Client) EffectiveRole() string {
	if c == nil || c.evaluator == nil {
		return ""
	}
	return c.evaluator.EffectiveRole(c.currentRole())
}

// HasPermission reports whether the session's role grants the permission.
// Unauthenticated sessions hold no permissions; local mode holds all.
//
// HasPermission does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) HasPermission(perm permission.Permission) bool {
	if c == nil || c.evaluator == nil {
		return false
	}
	return c.evaluator.HasPermission(c.currentRole(), perm)
}

// HasRole reports whether the session's role ranks at or above the required
// role.
//
// HasRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) HasRole(required string) bool {
	if c == nil || c.evaluator == nil {
		return false
	}
	return c.evaluator.HasRole(c.currentRole(), required)
}

// PermissionNames returns the effective role's permission names in bit
// order.
func (c *Client) PermissionNames() []string {
	if c == nil || c.evaluator == nil {
		return nil
	}
	return c.evaluator.PermissionNames(c.currentRole())
}

func (c *Client) currentRole() string {
	current := c.sessions.Current()
	if current.Status != session.Authenticated || current.Principal == nil {
		if c.config.Mode == ModeLocal {
			return permission.RoleAdmin
		}
		return ""
	}
	return current.Principal.Role
}

/*
====================================
OBSERVABILITY
====================================
*/

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return c.metrics.Snapshot()
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Client) emit(event AuditEvent) {
	if c == nil || c.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now()
	}
	c.audit.Emit(context.Background(), event)
}

// classify maps raw adapter errors from client-level calls onto the root
// taxonomy, mirroring what the flow machines do internally.
func (c *Client) classify(err error) error {
	return c.deps.ClassifyAPIError(err)
}

func (c *Client) pinLocalSession() error {
	principal := &Principal{
		ID:          "local",
		Email:       "local@localhost",
		DisplayName: "Local User",
		Role:        permission.RoleAdmin,
	}
	return c.sessions.SetSession(principal, localModeToken)
}
