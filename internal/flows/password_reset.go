package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/studioapi/authcore/internal/stores"
)

// ResetState enumerates the forgot-password flow's states.
type ResetState uint8

const (
	// ResetCollectEmail is the initial state.
	ResetCollectEmail ResetState = iota
	// ResetAwaitingCode waits for the emailed reset code. Reached whether or
	// not the email maps to an account; the flow never discloses which.
	ResetAwaitingCode
	// ResetSetPassword collects the replacement password under the reset
	// token.
	ResetSetPassword
	// ResetComplete is terminal; the password changed and the user returns
	// to login.
	ResetComplete
)

func (s ResetState) String() string {
	switch s {
	case ResetCollectEmail:
		return "collect_email"
	case ResetAwaitingCode:
		return "awaiting_reset_code"
	case ResetSetPassword:
		return "set_password"
	case ResetComplete:
		return "complete"
	}
	return "unknown"
}

type resetVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"otp_code" validate:"required,len=6,numeric"`
}

type resetPasswordRequest struct {
	Password        string `json:"new_password" validate:"required,min=12"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// ResetMachine drives self-service password recovery. Begin reports the
// same uniform outcome for known and unknown emails so the flow cannot be
// used to probe which addresses hold accounts.
type ResetMachine struct {
	deps Deps
	gate gate

	state ResetState
	email string
}

// NewResetMachine builds the machine, resuming at the password step when a
// reset token survives from a previous run.
func NewResetMachine(deps Deps) *ResetMachine {
	deps.normalize()
	m := &ResetMachine{deps: deps, state: ResetCollectEmail}

	if cred, err := deps.Transients.Get(stores.KindPasswordReset); err == nil {
		m.state = ResetSetPassword
		m.email = cred.Email
	}
	return m
}

// State returns the machine's current state.
func (m *ResetMachine) State() ResetState { return m.state }

// Begin requests a reset code for the given email. Always transitions to
// AwaitingCode on a 2xx; the server responds identically whether or not the
// account exists.
func (m *ResetMachine) Begin(ctx context.Context, email string) error {
	if !m.deps.ready() {
		return m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	if err := m.deps.checkStruct(emailRequest{Email: email}); err != nil {
		return err
	}

	body := map[string]string{"email": email}
	_, err := m.deps.API.Do(ctx, apiRequest(http.MethodPost, "/api/auth/forgot-password", body, ""))
	if err != nil {
		return m.deps.ClassifyAPIError(err)
	}

	m.email = email
	m.state = ResetAwaitingCode
	m.deps.MetricInc(m.deps.Metrics.ResetRequested)
	m.deps.Emit(m.deps.Events.ResetRequested, true, nil, map[string]string{
		"email": email,
	})
	return nil
}

// VerifyCode exchanges the emailed code for a reset token, stored as the
// flow's transient credential. Transitions to SetPassword.
func (m *ResetMachine) VerifyCode(ctx context.Context, code string) error {
	if !m.deps.ready() {
		return m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	if m.email == "" {
		m.state = ResetCollectEmail
		return m.expired()
	}
	req := resetVerifyRequest{Email: m.email, Code: code}
	if err := m.deps.checkStruct(req); err != nil {
		return err
	}

	resp, err := m.deps.API.Do(ctx, apiRequest(http.MethodPost, "/api/auth/forgot-password/verify-otp", req, ""))
	if err != nil {
		return m.deps.ClassifyAPIError(err)
	}

	var payload struct {
		ResetToken string `json:"reset_token"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil || payload.ResetToken == "" {
		return fmt.Errorf("%w: verify-otp response carried no reset token", m.deps.Errors.Server)
	}

	err = m.deps.Transients.Put(stores.KindPasswordReset, stores.Credential{
		Token:     payload.ResetToken,
		Email:     m.email,
		ExpiresAt: m.deps.Now().Add(30 * time.Minute),
	})
	if err != nil {
		return err
	}

	m.state = ResetSetPassword
	return nil
}

// SubmitNewPassword replaces the account password under the reset token.
// Terminal transition; the flow does not log the user in.
func (m *ResetMachine) SubmitNewPassword(ctx context.Context, password, confirm string) error {
	if !m.deps.ready() {
		return m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	cred, err := m.deps.Transients.Get(stores.KindPasswordReset)
	if err != nil {
		m.reset()
		return m.expired()
	}

	req := resetPasswordRequest{Password: password, ConfirmPassword: confirm}
	if err := m.deps.checkStruct(req); err != nil {
		return err
	}

	body := map[string]string{
		"reset_token":      cred.Token,
		"new_password":     password,
		"confirm_password": confirm,
	}
	_, err = m.deps.API.Do(ctx, apiRequest(http.MethodPost, "/api/auth/reset-password", body, ""))
	if err != nil {
		return m.deps.ClassifyAPIError(err)
	}

	_ = m.deps.Transients.Discard(stores.KindPasswordReset)
	m.state = ResetComplete
	m.deps.MetricInc(m.deps.Metrics.ResetCompleted)
	m.deps.Emit(m.deps.Events.ResetCompleted, true, nil, map[string]string{
		"email": cred.Email,
	})
	return nil
}

// Reset abandons the flow and discards its transient credential.
func (m *ResetMachine) Reset() {
	m.reset()
}

func (m *ResetMachine) reset() {
	_ = m.deps.Transients.Discard(stores.KindPasswordReset)
	m.email = ""
	m.state = ResetCollectEmail
}

func (m *ResetMachine) expired() error {
	m.deps.MetricInc(m.deps.Metrics.FlowExpired)
	m.deps.Emit(m.deps.Events.FlowExpired, false, m.deps.Errors.FlowExpired, map[string]string{
		"flow": "password_reset",
	})
	return m.deps.Errors.FlowExpired
}
