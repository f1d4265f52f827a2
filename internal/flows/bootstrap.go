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

// BootstrapState enumerates the first-run flow's states.
type BootstrapState uint8

const (
	// BootstrapCollectTokenAndEmail is the initial state.
	BootstrapCollectTokenAndEmail BootstrapState = iota
	// BootstrapAwaitingEmailCode waits for the emailed one-time code.
	BootstrapAwaitingEmailCode
	// BootstrapSetAdminPassword collects the first admin password.
	BootstrapSetAdminPassword
	// BootstrapTwoFactorSetup displays the provisioning secret and waits for
	// the confirming code.
	BootstrapTwoFactorSetup
	// BootstrapComplete is terminal; a full session has been written.
	BootstrapComplete
)

func (s BootstrapState) String() string {
	switch s {
	case BootstrapCollectTokenAndEmail:
		return "collect_token_and_email"
	case BootstrapAwaitingEmailCode:
		return "awaiting_email_code"
	case BootstrapSetAdminPassword:
		return "set_admin_password"
	case BootstrapTwoFactorSetup:
		return "two_factor_setup"
	case BootstrapComplete:
		return "complete"
	}
	return "unknown"
}

// SystemStatus is the backend's initialization report.
type SystemStatus struct {
	Locked            bool   `json:"locked"`
	AdminExists       bool   `json:"admin_exists"`
	AppMode           string `json:"app_mode"`
	SMTPConfigured    bool   `json:"smtp_configured"`
	RequiresBootstrap bool   `json:"requires_bootstrap"`
}

// TwoFactorSetup is the client-held setup session: provisioning data plus
// the one-time backup codes. A fresh fetch of backup codes is always a full
// replacement of the previous set, never a merge.
type TwoFactorSetup struct {
	ProvisioningURI string   `json:"qr_code"`
	Secret          string   `json:"secret"`
	BackupCodes     []string `json:"backup_codes"`
	Verified        bool     `json:"verified"`
	Acknowledged    bool     `json:"acknowledged"`
}

// BootstrapBeginRequest starts the flow with the deployment's bootstrap
// token and the future admin's email.
type BootstrapBeginRequest struct {
	Token string `json:"token" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type bootstrapPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=12"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type bootstrapCodeRequest struct {
	Code string `validate:"required,len=6,numeric"`
}

// BootstrapMachine drives first-run admin provisioning. Entered only while
// the backend reports no admin; reachable states after a restart are
// recovered solely from the stored transient credentials.
type BootstrapMachine struct {
	deps Deps
	gate gate

	state BootstrapState
	email string
	setup *TwoFactorSetup
}

// NewBootstrapMachine builds the machine, resuming mid-flow when a transient
// credential survives from a previous run.
func NewBootstrapMachine(deps Deps) *BootstrapMachine {
	deps.normalize()
	m := &BootstrapMachine{deps: deps, state: BootstrapCollectTokenAndEmail}

	if cred, err := deps.Transients.Get(stores.KindBootstrapSetup); err == nil {
		m.state = BootstrapTwoFactorSetup
		m.email = cred.Email
		var setup TwoFactorSetup
		if len(cred.Payload) > 0 && json.Unmarshal(cred.Payload, &setup) == nil {
			m.setup = &setup
		}
		return m
	}
	if cred, err := deps.Transients.Get(stores.KindBootstrapOTP); err == nil {
		m.state = BootstrapSetAdminPassword
		m.email = cred.Email
	}
	return m
}

// State returns the machine's current state.
func (m *BootstrapMachine) State() BootstrapState { return m.state }

// Setup returns the current two-factor setup session, nil before the
// password step completes.
func (m *BootstrapMachine) Setup() *TwoFactorSetup { return m.setup }

// SystemStatus fetches the backend's initialization report. Read-only; does
// not transition the machine.
func (m *BootstrapMachine) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	if !m.deps.ready() {
		return nil, m.deps.Errors.NotReady
	}
	resp, err := m.deps.API.Do(ctx, apiRequest(http.MethodGet, "/api/system-status", nil, ""))
	if err != nil {
		return nil, m.deps.ClassifyAPIError(err)
	}

	var status SystemStatus
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("%w: undecodable system status: %v", m.deps.Errors.Server, err)
	}
	return &status, nil
}

// Begin validates the bootstrap token and requests the emailed code.
// Transitions to AwaitingEmailCode on success.
func (m *BootstrapMachine) Begin(ctx context.Context, req BootstrapBeginRequest) error {
	if !m.deps.ready() {
		return m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	if err := m.deps.checkStruct(req); err != nil {
		return err
	}

	_, err := m.deps.API.Do(ctx, apiRequest(http.MethodPost, "/api/bootstrap", req, ""))
	if err != nil {
		return m.deps.ClassifyAPIError(err)
	}

	m.email = req.Email
	m.state = BootstrapAwaitingEmailCode
	m.deps.Emit(m.deps.Events.BootstrapStarted, true, nil, map[string]string{
		"email": req.Email,
	})
	return nil
}

// VerifyEmailCode exchanges the emailed code for the temporary setup token,
// stored as the flow's transient credential. Transitions to
// SetAdminPassword.
func (m *BootstrapMachine) VerifyEmailCode(ctx context.Context, code string) error {
	if !m.deps.ready() {
		return m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	if m.email == "" {
		// The pre-credential steps are not resumable; start over.
		m.state = BootstrapCollectTokenAndEmail
		return m.expired()
	}
	if err := m.deps.checkStruct(bootstrapCodeRequest{Code: code}); err != nil {
		return err
	}

	body := map[string]string{"email": m.email, "otp": code}
	resp, err := m.deps.API.Do(ctx, apiRequest(http.MethodPost, "/api/bootstrap/verify-otp", body, ""))
	if err != nil {
		return m.deps.ClassifyAPIError(err)
	}

	var payload struct {
		TempToken string `json:"temp_token"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil || payload.TempToken == "" {
		return fmt.Errorf("%w: verify-otp response carried no token", m.deps.Errors.Server)
	}

	err = m.deps.Transients.Put(stores.KindBootstrapOTP, stores.Credential{
		Token:     payload.TempToken,
		Email:     m.email,
		ExpiresAt: m.deps.Now().Add(30 * time.Minute),
	})
	if err != nil {
		return err
	}

	m.state = BootstrapSetAdminPassword
	return nil
}

// SetAdminPassword sets the first admin password under the temporary token
// and receives the two-factor provisioning payload. Transitions to
// TwoFactorSetup.
func (m *BootstrapMachine) SetAdminPassword(ctx context.Context, password, confirm string) (*TwoFactorSetup, error) {
	if !m.deps.ready() {
		return nil, m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return nil, m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	cred, err := m.deps.Transients.Get(stores.KindBootstrapOTP)
	if err != nil {
		m.reset()
		return nil, m.expired()
	}

	req := bootstrapPasswordRequest{Password: password, ConfirmPassword: confirm}
	if err := m.deps.checkStruct(req); err != nil {
		return nil, err
	}

	resp, err := m.deps.API.Do(ctx, apiRequest(
		http.MethodPost, "/api/auth/first-time-password", req, cred.Token,
	))
	if err != nil {
		return nil, m.deps.ClassifyAPIError(err)
	}

	var payload struct {
		TwoFASetup TwoFactorSetup `json:"two_fa_setup"`
		SetupToken string         `json:"setup_token"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil || payload.SetupToken == "" {
		return nil, fmt.Errorf("%w: password step returned no setup token", m.deps.Errors.Server)
	}

	setup := payload.TwoFASetup
	encoded, err := json.Marshal(setup)
	if err != nil {
		return nil, fmt.Errorf("encoding setup session: %w", err)
	}
	err = m.deps.Transients.Put(stores.KindBootstrapSetup, stores.Credential{
		Token:     payload.SetupToken,
		Email:     cred.Email,
		ExpiresAt: m.deps.Now().Add(30 * time.Minute),
		Payload:   encoded,
	})
	if err != nil {
		return nil, err
	}
	_ = m.deps.Transients.Discard(stores.KindBootstrapOTP)

	m.setup = &setup
	m.state = BootstrapTwoFactorSetup
	return m.setup, nil
}

// VerifyTwoFactorSetup submits the first code from the provisioned
// authenticator. The server confirms it against the same provisioning
// secret and returns the admin session; the client never checks codes
// itself. Terminal transition: writes the full session and discards the
// transient credentials.
func (m *BootstrapMachine) VerifyTwoFactorSetup(ctx context.Context, code string) (*session.Principal, error) {
	if !m.deps.ready() {
		return nil, m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return nil, m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	cred, err := m.deps.Transients.Get(stores.KindBootstrapSetup)
	if err != nil {
		m.reset()
		return nil, m.expired()
	}
	if err := m.deps.checkStruct(bootstrapCodeRequest{Code: code}); err != nil {
		return nil, err
	}

	body := map[string]string{"totp_code": code}
	// Token issuance must survive the originating view being discarded.
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

	_ = m.deps.Transients.Discard(stores.KindBootstrapSetup)
	if m.setup != nil {
		m.setup.Verified = true
	}
	m.state = BootstrapComplete
	m.deps.MetricInc(m.deps.Metrics.BootstrapCompleted)
	m.deps.Emit(m.deps.Events.BootstrapCompleted, true, nil, map[string]string{
		"email": cred.Email,
	})
	return principal, nil
}

// Reset abandons the flow and discards its transient credentials.
func (m *BootstrapMachine) Reset() {
	m.reset()
}

func (m *BootstrapMachine) reset() {
	_ = m.deps.Transients.Discard(stores.KindBootstrapOTP)
	_ = m.deps.Transients.Discard(stores.KindBootstrapSetup)
	m.setup = nil
	m.email = ""
	m.state = BootstrapCollectTokenAndEmail
}

func (m *BootstrapMachine) expired() error {
	m.deps.MetricInc(m.deps.Metrics.FlowExpired)
	m.deps.Emit(m.deps.Events.FlowExpired, false, m.deps.Errors.FlowExpired, map[string]string{
		"flow": "bootstrap",
	})
	return m.deps.Errors.FlowExpired
}
