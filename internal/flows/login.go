package flows

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/studioapi/authcore/internal/limiters"
	"github.com/studioapi/authcore/session"
)

// LoginState enumerates the login machine's states.
type LoginState uint8

const (
	// LoginCollectCredentials is the initial and retry state.
	LoginCollectCredentials LoginState = iota
	// LoginAuthenticated is terminal success.
	LoginAuthenticated
	// LoginFailed is the state after a rejected attempt.
	LoginFailed
	// LoginLocked means the local lockout window is open.
	LoginLocked
)

func (s LoginState) String() string {
	switch s {
	case LoginCollectCredentials:
		return "collect_credentials"
	case LoginAuthenticated:
		return "authenticated"
	case LoginFailed:
		return "failed"
	case LoginLocked:
		return "locked"
	}
	return "unknown"
}

// LoginRequest carries one submission. Credentials and the second-factor
// code travel together; when the account has two-factor enabled the server
// requires the code on the same submission.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	TOTPCode   string `json:"totp_code,omitempty" validate:"omitempty,len=6,numeric"`
	BackupCode string `json:"backup_code,omitempty" validate:"omitempty,min=8"`
}

// LoginMachine drives credential login with same-submission second factor.
type LoginMachine struct {
	deps  Deps
	guard *limiters.LockoutGuard
	id    string
	gate  gate

	state       LoginState
	lastMessage string
}

// NewLoginMachine builds a login machine with its own lockout guard. The
// guard is keyed to this form instance; a fresh machine starts clean.
func NewLoginMachine(deps Deps) *LoginMachine {
	deps.normalize()
	return &LoginMachine{
		deps:  deps,
		guard: limiters.NewLockoutGuard(deps.LockoutCfg, deps.Now),
		id:    uuid.NewString(),
		state: LoginCollectCredentials,
	}
}

// State returns the current machine state, reflecting lazy lockout expiry.
func (m *LoginMachine) State() LoginState {
	if m.state == LoginLocked && !m.guard.Snapshot().Locked(m.deps.Now()) {
		m.state = LoginCollectCredentials
	}
	return m.state
}

// Lockout returns the guard's counters for countdown rendering.
func (m *LoginMachine) Lockout() limiters.State {
	return m.guard.Snapshot()
}

// LastMessage returns the most recent server-provided display message.
func (m *LoginMachine) LastMessage() string {
	return m.lastMessage
}

// Submit runs one login attempt. While the call is outstanding, further
// submits fail with the flow-busy sentinel. A success is committed to the
// session store even when ctx was canceled after the request went out; a
// late failure is dropped silently.
func (m *LoginMachine) Submit(ctx context.Context, req LoginRequest) (*session.Principal, error) {
	if !m.deps.ready() {
		return nil, m.deps.Errors.NotReady
	}
	if !m.gate.acquire() {
		return nil, m.deps.Errors.FlowBusy
	}
	defer m.gate.release()

	if err := m.deps.checkStruct(req); err != nil {
		return nil, err
	}

	if err := m.guard.Allow(); err != nil {
		m.state = LoginLocked
		m.deps.MetricInc(m.deps.Metrics.LoginLockedOut)
		m.deps.Emit(m.deps.Events.LoginLockedOut, false, err, map[string]string{
			"form": m.id,
		})
		return nil, fmt.Errorf("%w: retry in %s",
			m.deps.Errors.LockedOut, m.guard.Snapshot().Remaining(m.deps.Now()))
	}

	m.deps.Sessions.MarkAuthenticating()

	// The request must survive the caller navigating away: a canceled view
	// must not lose a token the server already issued.
	resp, err := m.deps.API.Do(context.WithoutCancel(ctx), apiRequest(
		http.MethodPost, "/api/auth/login", req, "",
	))
	if err != nil {
		return nil, m.finishFailure(ctx, err)
	}

	payload, err := decodeAuthPayload(resp.Data, m.deps.Errors.Server)
	if err != nil {
		m.deps.Sessions.MarkFailed()
		m.state = LoginFailed
		return nil, err
	}

	principal := payload.User.principal()
	if err := m.deps.Sessions.SetSession(principal, payload.AccessToken); err != nil {
		m.state = LoginFailed
		return nil, err
	}

	m.guard.RecordSuccess()
	m.state = LoginAuthenticated
	m.lastMessage = resp.Message
	m.deps.MetricInc(m.deps.Metrics.LoginSuccess)
	m.deps.Emit(m.deps.Events.LoginSuccess, true, nil, map[string]string{
		"email": req.Email,
	})
	return principal, nil
}

// finishFailure classifies a failed attempt and updates lockout state. Only
// authentication rejections burn a lockout attempt: a wrong password and a
// wrong second-factor code are indistinguishable to the guard.
func (m *LoginMachine) finishFailure(ctx context.Context, callErr error) error {
	// Late failure for a discarded view: drop without touching counters.
	if ctx.Err() != nil {
		m.deps.Sessions.MarkFailed()
		m.state = LoginCollectCredentials
		return ctx.Err()
	}

	m.deps.Sessions.MarkFailed()
	classified := m.deps.ClassifyAPIError(callErr)

	if apiErr, ok := apiErrorOf(callErr); ok {
		switch apiErr.Code {
		case "TWO_FACTOR_REQUIRED", "2FA_REQUIRED":
			// Not a wrong guess; the account simply requires a code on the
			// same submission.
			m.state = LoginCollectCredentials
			m.lastMessage = apiErr.Message
			return fmt.Errorf("%w: %s", m.deps.Errors.TwoFactorRequired, apiErr.Message)
		}
	}

	switch {
	case isErr(classified, m.deps.Errors.AccountLocked):
		// Server lockout is authoritative and extends the local window.
		until := serverLockedUntil(callErr)
		m.guard.ApplyServerLockout(until)
		m.state = LoginLocked
		m.deps.MetricInc(m.deps.Metrics.LoginLockedOut)
		m.deps.Emit(m.deps.Events.LoginLockedOut, false, classified, map[string]string{
			"source": "server",
		})

	case isErr(classified, m.deps.Errors.AuthenticationFailed):
		m.state = LoginFailed
		m.deps.MetricInc(m.deps.Metrics.LoginFailure)
		m.deps.Emit(m.deps.Events.LoginFailure, false, classified, nil)
		if m.guard.RecordFailure() {
			m.state = LoginLocked
			m.deps.MetricInc(m.deps.Metrics.LockoutTriggered)
			m.deps.Emit(m.deps.Events.LockoutTriggered, false, classified, map[string]string{
				"form": m.id,
			})
		}

	default:
		// Rate limiting, network, server, and bootstrap-routing outcomes do
		// not count as failed guesses.
		m.state = LoginFailed
	}

	m.lastMessage = serverMessage(callErr)
	return classified
}
