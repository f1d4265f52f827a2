package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/studioapi/authcore/internal/stores"
	"github.com/studioapi/authcore/session"
)

// InviteState enumerates the collaborator-invitation flow's states.
type InviteState uint8

const (
	// InviteCollectEmail is the initial state.
	InviteCollectEmail InviteState = iota
	// InviteAwaitingCode waits for the emailed invitation code.
	InviteAwaitingCode
	// InviteRoleKnown means the code verified and the granted role is
	// available to display. The role is never shown before this point.
	InviteRoleKnown
	// InviteTwoFactorSetup is entered only when the invitee opted into
	// two-factor during password setup.
	InviteTwoFactorSetup
	// InviteComplete is terminal; the invitee holds a full session.
	InviteComplete
)

func (s InviteState) String() string {
	switch s {
	case InviteCollectEmail:
		return "collect_email"
	case InviteAwaitingCode:
		return "awaiting_invite_code"
	case InviteRoleKnown:
		return "role_known"
	case InviteTwoFactorSetup:
		return "two_factor_setup"
	case InviteComplete:
		return "complete"
	}
	return "unknown"
}

// InviteSetupRequest finishes account creation under the setup token.
type InviteSetupRequest struct {
	Password        string `json:"password" validate:"required,min=12"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	EnableTwoFactor bool   `json:"enable_2fa"`
}

type inviteVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"otp_code" validate:"required,len=6,numeric"`
}

// InviteMachine drives invited-collaborator onboarding. The granted role is
// revealed only after the server accepts the invitation code; before that
// the machine reports an empty role.
type InviteMachine struct {
	deps Deps
	gate gate

	state InviteState
	email string
	role  string
	setup *TwoFactorSetup
}

// NewInviteMachine builds the machine, resuming from a surviving transient
// credential when one exists.
func NewInviteMachine(deps Deps) *InviteMachine {
	deps.normalize()
	m := &InviteMachine{deps: deps, state: InviteCollectEmail}

	if cred, err := deps.Transients.Get(stores.KindInvitation); err == nil {
		m.email = cred.Email
		m.role = cred.Role
		m.state = InviteRoleKnown
		var setup TwoFactorSetup
		if len(cred.Payload) > 0 && json.Unmarshal(cred.Payload, &setup) == nil {
			m.setup = &setup
			m.state = InviteTwoFactorSetup
		}
	}
	return m
}

// State returns the machine's current state.
func (m *InviteMachine) State() InviteState { return m.state }

// Role returns the granted role, empty until the invitation code verifies.
func (m *InviteMachine) Role() string { return m.role }

// Setup returns the two-factor setup session, nil unless the invitee opted
// into two-factor enrollment.
func (m *InviteMachine) Setup() *TwoFactorSetup { return m.setup }

// Begin records the invitee's email and moves to code entry. The invitation
// email is sent by an administrator out of band; there is no endpoint for
// the invitee to request one, so this transition is local.
func (m *InviteMachine) Begin(email string) error {
	if !m.gate.acquire() {
		return m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	if err := m.deps.checkStruct(emailRequest{Email: email}); err != nil {
		return err
	}
	m.email = email
	m.state = InviteAwaitingCode
	return nil
}

// VerifyCode submits the emailed invitation code. On success the server
// reveals the granted role and issues a setup token, stored as the flow's
// transient credential.
func (m *InviteMachine) VerifyCode(ctx context.Context, code string) error {
	if !m.deps.ready() {
		return m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	if m.email == "" {
		m.state = InviteCollectEmail
		return m.expired()
	}
	req := inviteVerifyRequest{Email: m.email, Code: code}
	if err := m.deps.checkStruct(req); err != nil {
		return err
	}

	resp, err := m.deps.API.Do(ctx, apiRequest(http.MethodPost, "/api/auth/verify-invitation", req, ""))
	if err != nil {
		return m.deps.ClassifyAPIError(err)
	}

	var payload struct {
		SetupToken string    `json:"setup_token"`
		Role       string    `json:"role"`
		ExpiresAt  time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil || payload.SetupToken == "" {
		return fmt.Errorf("%w: invitation verify returned no setup token", m.deps.Errors.Server)
	}

	expires := payload.ExpiresAt
	if expires.IsZero() {
		expires = m.deps.Now().Add(30 * time.Minute)
	}
	err = m.deps.Transients.Put(stores.KindInvitation, stores.Credential{
		Token:     payload.SetupToken,
		Email:     m.email,
		Role:      payload.Role,
		ExpiresAt: expires,
	})
	if err != nil {
		return err
	}

	m.role = payload.Role
	m.state = InviteRoleKnown
	m.deps.Emit(m.deps.Events.InviteVerified, true, nil, map[string]string{
		"email": m.email,
		"role":  payload.Role,
	})
	return nil
}

// CompleteSetup creates the account under the setup token. Without
// two-factor enrollment the server returns a full session and the flow
// completes; with enrollment it returns a provisioning payload and a fresh
// setup token, and the flow moves to TwoFactorSetup.
func (m *InviteMachine) CompleteSetup(ctx context.Context, req InviteSetupRequest) (*session.Principal, error) {
	if !m.deps.ready() {
		return nil, m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return nil, m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	cred, err := m.deps.Transients.Get(stores.KindInvitation)
	if err != nil {
		m.reset()
		return nil, m.expired()
	}
	if err := m.deps.checkStruct(req); err != nil {
		return nil, err
	}

	body := map[string]any{
		"setup_token":      cred.Token,
		"password":         req.Password,
		"confirm_password": req.ConfirmPassword,
		"enable_2fa":       req.EnableTwoFactor,
	}
	// Token issuance must survive the originating view being discarded.
	resp, err := m.deps.API.Do(context.WithoutCancel(ctx), apiRequest(
		http.MethodPost, "/api/auth/collaborator/set-password", body, "",
	))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, m.deps.ClassifyAPIError(err)
	}

	var payload struct {
		AccessToken string          `json:"access_token"`
		User        userPayload     `json:"user"`
		TwoFASetup  *TwoFactorSetup `json:"two_fa_setup"`
		SetupToken  string          `json:"setup_token"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: undecodable setup response: %v", m.deps.Errors.Server, err)
	}

	if req.EnableTwoFactor {
		if payload.TwoFASetup == nil || payload.SetupToken == "" {
			return nil, fmt.Errorf("%w: setup response carried no provisioning payload", m.deps.Errors.Server)
		}
		encoded, err := json.Marshal(payload.TwoFASetup)
		if err != nil {
			return nil, fmt.Errorf("encoding setup session: %w", err)
		}
		err = m.deps.Transients.Put(stores.KindInvitation, stores.Credential{
			Token:     payload.SetupToken,
			Email:     cred.Email,
			Role:      cred.Role,
			ExpiresAt: m.deps.Now().Add(15 * time.Minute),
			Payload:   encoded,
		})
		if err != nil {
			return nil, err
		}
		m.setup = payload.TwoFASetup
		m.state = InviteTwoFactorSetup
		return nil, nil
	}

	if payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: setup response carried no token", m.deps.Errors.Server)
	}
	principal := payload.User.principal()
	if err := m.deps.Sessions.SetSession(principal, payload.AccessToken); err != nil {
		return nil, err
	}
	m.finish(cred.Email)
	return principal, nil
}

// VerifyTwoFactorSetup confirms the optional enrollment with the first
// authenticator code and receives the full session. Terminal transition.
func (m *InviteMachine) VerifyTwoFactorSetup(ctx context.Context, code string) (*session.Principal, error) {
	if !m.deps.ready() {
		return nil, m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return nil, m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	cred, err := m.deps.Transients.Get(stores.KindInvitation)
	if err != nil {
		m.reset()
		return nil, m.expired()
	}
	if err := m.deps.checkStruct(bootstrapCodeRequest{Code: code}); err != nil {
		return nil, err
	}

	body := map[string]string{"totp_code": code}
	resp, err := m.deps.API.Do(context.WithoutCancel(ctx), apiRequest(
		http.MethodPost, "/api/auth/verify-2fa-setup", body, cred.Token,
	))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, m.deps.ClassifyAPIError(err)
	}

	payload, err := decodeAuthPayload(resp.Data, m.deps.Errors.Server)
	if err != nil {
		return nil, err
	}
	principal := payload.User.principal()
	if err := m.deps.Sessions.SetSession(principal, payload.AccessToken); err != nil {
		return nil, err
	}
	m.finish(cred.Email)
	return principal, nil
}

// Reset abandons the flow and discards its transient credential.
func (m *InviteMachine) Reset() {
	m.reset()
}

func (m *InviteMachine) finish(email string) {
	_ = m.deps.Transients.Discard(stores.KindInvitation)
	m.state = InviteComplete
	m.deps.MetricInc(m.deps.Metrics.InviteAccepted)
	m.deps.Emit(m.deps.Events.InviteAccepted, true, nil, map[string]string{
		"email": email,
		"role":  m.role,
	})
}

func (m *InviteMachine) reset() {
	_ = m.deps.Transients.Discard(stores.KindInvitation)
	m.email = ""
	m.role = ""
	m.setup = nil
	m.state = InviteCollectEmail
}

func (m *InviteMachine) expired() error {
	m.deps.MetricInc(m.deps.Metrics.FlowExpired)
	m.deps.Emit(m.deps.Events.FlowExpired, false, m.deps.Errors.FlowExpired, map[string]string{
		"flow": "invitation",
	})
	return m.deps.Errors.FlowExpired
}
