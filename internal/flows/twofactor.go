package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/studioapi/authcore/internal/stores"
)

// TwoFactorState enumerates the authenticated two-factor management flow's
// states.
type TwoFactorState uint8

const (
	// TwoFactorIdle means no setup is in progress.
	TwoFactorIdle TwoFactorState = iota
	// TwoFactorProvisioned means the server staged a secret and the user
	// must confirm with an authenticator code.
	TwoFactorProvisioned
	// TwoFactorAwaitingAck means fresh backup codes are on display and the
	// user must confirm they stored them before the flow closes. The codes
	// are shown exactly once.
	TwoFactorAwaitingAck
)

func (s TwoFactorState) String() string {
	switch s {
	case TwoFactorIdle:
		return "idle"
	case TwoFactorProvisioned:
		return "provisioned"
	case TwoFactorAwaitingAck:
		return "awaiting_ack"
	}
	return "unknown"
}

// Stage markers stored in the transient credential's token slot. This flow
// authenticates with the live session, so the slot records which step is
// pending across restarts instead of a server token.
const (
	twoFactorStageVerify = "pending_verify"
	twoFactorStageAck    = "pending_ack"
)

type twoFactorCodeRequest struct {
	Code string `json:"totp_code" validate:"required,len=6,numeric"`
}

type twoFactorDisableRequest struct {
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code,omitempty" validate:"omitempty,len=6,numeric"`
}

// TwoFactorMachine manages two-factor enrollment for an authenticated
// account: provisioning, confirmation, backup code regeneration, and
// disable. Every check runs on the server; this machine never inspects
// codes itself.
type TwoFactorMachine struct {
	deps Deps
	gate gate

	state TwoFactorState
	setup *TwoFactorSetup
}

// NewTwoFactorMachine builds the machine, resuming a pending setup or an
// unacknowledged batch of backup codes from the transient store.
func NewTwoFactorMachine(deps Deps) *TwoFactorMachine {
	deps.normalize()
	m := &TwoFactorMachine{deps: deps, state: TwoFactorIdle}

	cred, err := deps.Transients.Get(stores.KindTwoFactorSetup)
	if err != nil {
		return m
	}
	var setup TwoFactorSetup
	if len(cred.Payload) == 0 || json.Unmarshal(cred.Payload, &setup) != nil {
		_ = deps.Transients.Discard(stores.KindTwoFactorSetup)
		return m
	}
	m.setup = &setup
	switch cred.Token {
	case twoFactorStageVerify:
		m.state = TwoFactorProvisioned
	case twoFactorStageAck:
		m.state = TwoFactorAwaitingAck
	default:
		_ = deps.Transients.Discard(stores.KindTwoFactorSetup)
		m.setup = nil
	}
	return m
}

// State returns the machine's current state.
func (m *TwoFactorMachine) State() TwoFactorState { return m.state }

// Setup returns the in-progress setup session, nil when idle.
func (m *TwoFactorMachine) Setup() *TwoFactorSetup { return m.setup }

// Provision asks the server to stage a secret for the account and returns
// the provisioning payload. Enrollment is not active until VerifyCode
// confirms it.
func (m *TwoFactorMachine) Provision(ctx context.Context) (*TwoFactorSetup, error) {
	if !m.deps.ready() {
		return nil, m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return nil, m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	if m.state == TwoFactorAwaitingAck {
		return nil, m.deps.Errors.BackupUnacked
	}

	resp, err := m.deps.API.Do(ctx, apiRequest(http.MethodPost, "/api/user/enable-2fa", nil, ""))
	if err != nil {
		return nil, m.deps.ClassifyAPIError(err)
	}

	var setup TwoFactorSetup
	if err := json.Unmarshal(resp.Data, &setup); err != nil {
		return nil, fmt.Errorf("%w: undecodable provisioning payload: %v", m.deps.Errors.Server, err)
	}
	if err := m.stash(&setup, twoFactorStageVerify); err != nil {
		return nil, err
	}
	m.setup = &setup
	m.state = TwoFactorProvisioned
	return m.setup, nil
}

// VerifyCode confirms the staged secret with an authenticator code. On
// success the server activates enrollment and issues the definitive backup
// codes, which replace whatever Provision returned; the flow then waits for
// the acknowledgment.
func (m *TwoFactorMachine) VerifyCode(ctx context.Context, code string) ([]string, error) {
	if !m.deps.ready() {
		return nil, m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return nil, m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	if m.state != TwoFactorProvisioned {
		return nil, m.expired()
	}
	if err := m.requireStage(twoFactorStageVerify); err != nil {
		return nil, err
	}
	req := twoFactorCodeRequest{Code: code}
	if err := m.deps.checkStruct(req); err != nil {
		return nil, err
	}

	resp, err := m.deps.API.Do(ctx, apiRequest(http.MethodPost, "/api/user/verify-2fa", req, ""))
	if err != nil {
		return nil, m.deps.ClassifyAPIError(err)
	}

	var payload struct {
		BackupCodes []string `json:"backup_codes"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: undecodable backup codes: %v", m.deps.Errors.Server, err)
	}

	setup := *m.setup
	setup.BackupCodes = payload.BackupCodes
	setup.Verified = true
	if err := m.stash(&setup, twoFactorStageAck); err != nil {
		return nil, err
	}
	m.setup = &setup
	m.state = TwoFactorAwaitingAck

	m.markEnabled(true)
	m.deps.MetricInc(m.deps.Metrics.TwoFactorVerified)
	m.deps.Emit(m.deps.Events.TwoFactorEnabled, true, nil, nil)
	return payload.BackupCodes, nil
}

// RegenerateBackupCodes replaces the full backup code set. The previous
// codes stop working immediately; the flow re-enters the acknowledgment
// step for the new batch.
func (m *TwoFactorMachine) RegenerateBackupCodes(ctx context.Context) ([]string, error) {
	if !m.deps.ready() {
		return nil, m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return nil, m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	if m.state == TwoFactorAwaitingAck {
		return nil, m.deps.Errors.BackupUnacked
	}

	resp, err := m.deps.API.Do(ctx, apiRequest(http.MethodPost, "/api/user/regenerate-backup-codes", nil, ""))
	if err != nil {
		return nil, m.deps.ClassifyAPIError(err)
	}

	var payload struct {
		BackupCodes []string `json:"backup_codes"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: undecodable backup codes: %v", m.deps.Errors.Server, err)
	}

	setup := TwoFactorSetup{BackupCodes: payload.BackupCodes, Verified: true}
	if err := m.stash(&setup, twoFactorStageAck); err != nil {
		return nil, err
	}
	m.setup = &setup
	m.state = TwoFactorAwaitingAck

	m.deps.MetricInc(m.deps.Metrics.BackupRegenerated)
	m.deps.Emit(m.deps.Events.BackupRegenerated, true, nil, nil)
	return payload.BackupCodes, nil
}

// AcknowledgeBackupCodes records that the user confirmed storing the codes
// and drops them from the client. Required before the flow returns to idle.
func (m *TwoFactorMachine) AcknowledgeBackupCodes() error {
	if !m.gate.acquire() {
		return m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	if m.state != TwoFactorAwaitingAck {
		return m.expired()
	}
	if err := m.requireStage(twoFactorStageAck); err != nil {
		return err
	}
	m.reset()
	return nil
}

// Disable turns enrollment off. The server requires the account password
// and, when supplied, also checks a current authenticator code.
func (m *TwoFactorMachine) Disable(ctx context.Context, password, totpCode string) error {
	if !m.deps.ready() {
		return m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	req := twoFactorDisableRequest{Password: password, TOTPCode: totpCode}
	if err := m.deps.checkStruct(req); err != nil {
		return err
	}

	_, err := m.deps.API.Do(ctx, apiRequest(http.MethodPost, "/api/user/disable-2fa", req, ""))
	if err != nil {
		return m.deps.ClassifyAPIError(err)
	}

	m.reset()
	m.markEnabled(false)
	m.deps.Emit(m.deps.Events.TwoFactorDisabled, true, nil, nil)
	return nil
}

// Cancel abandons an unconfirmed provisioning. The staged server-side
// secret stays inert because enrollment never activated.
func (m *TwoFactorMachine) Cancel() {
	if !m.gate.acquire() {
		return
	}
	defer m.gate.release()

	m.reset()
}

// requireStage re-reads the transient credential and confirms the flow is
// still at the given stage. A credential that vanished or expired mid-flow
// forces a hard reset to idle.
func (m *TwoFactorMachine) requireStage(stage string) error {
	cred, err := m.deps.Transients.Get(stores.KindTwoFactorSetup)
	if err != nil || cred.Token != stage {
		m.reset()
		return m.expired()
	}
	return nil
}

func (m *TwoFactorMachine) reset() {
	_ = m.deps.Transients.Discard(stores.KindTwoFactorSetup)
	m.setup = nil
	m.state = TwoFactorIdle
}

func (m *TwoFactorMachine) stash(setup *TwoFactorSetup, stage string) error {
	encoded, err := json.Marshal(setup)
	if err != nil {
		return fmt.Errorf("encoding setup session: %w", err)
	}
	return m.deps.Transients.Put(stores.KindTwoFactorSetup, stores.Credential{
		Token:     stage,
		ExpiresAt: m.deps.Now().Add(15 * time.Minute),
		Payload:   encoded,
	})
}

func (m *TwoFactorMachine) markEnabled(enabled bool) {
	current := m.deps.Sessions.Current()
	if current.Principal == nil {
		return
	}
	principal := *current.Principal
	principal.TwoFactorEnabled = enabled
	m.deps.Sessions.SetPrincipal(&principal)
}

func (m *TwoFactorMachine) expired() error {
	m.deps.MetricInc(m.deps.Metrics.FlowExpired)
	m.deps.Emit(m.deps.Events.FlowExpired, false, m.deps.Errors.FlowExpired, map[string]string{
		"flow": "two_factor",
	})
	return m.deps.Errors.FlowExpired
}
