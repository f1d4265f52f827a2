package flows

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studioapi/authcore/api"
	"github.com/studioapi/authcore/session"
)

// gate is the per-machine busy latch. A machine acquires it for the duration
// of any transition that issues an API call; a second submit while held is
// rejected instead of queued, which is how a flow "disables its own trigger".
type gate struct {
	mu   sync.Mutex
	busy bool
}

func (g *gate) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

func (g *gate) release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

// checkStruct runs local pre-submission validation. Failures never reach the
// network and wrap the host's validation sentinel with the offending field.
func (d *Deps) checkStruct(v any) error {
	err := d.Validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return fmt.Errorf("%w: field %s failed rule %q", d.Errors.Validation, first.Field(), first.Tag())
	}
	return fmt.Errorf("%w: %v", d.Errors.Validation, err)
}

// ClassifyAPIError maps an adapter failure onto the host taxonomy. Plain
// request failures default to AuthenticationFailed, carrying the server's
// message so the UI can show the disambiguated reason.
func (d *Deps) ClassifyAPIError(err error) error {
	switch {
	case errors.Is(err, api.ErrAccountLocked):
		return fmt.Errorf("%w: %s", d.Errors.AccountLocked, serverMessage(err))
	case errors.Is(err, api.ErrRateLimited):
		return fmt.Errorf("%w: %s", d.Errors.RateLimited, serverMessage(err))
	case errors.Is(err, api.ErrSystemNotInitialized):
		return d.Errors.SystemNotInitialized
	case errors.Is(err, api.ErrUnauthorized):
		return d.Errors.SessionExpired
	case errors.Is(err, api.ErrNetworkUnreachable):
		return fmt.Errorf("%w: %s", d.Errors.NetworkUnreachable, serverMessage(err))
	case errors.Is(err, api.ErrServer):
		return fmt.Errorf("%w: %s", d.Errors.Server, serverMessage(err))
	default:
		return fmt.Errorf("%w: %s", d.Errors.AuthenticationFailed, serverMessage(err))
	}
}

// serverMessage extracts the display message from an adapter error.
func serverMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// apiRequest is sugar for building adapter requests.
func apiRequest(method, path string, body any, overrideToken string) api.Request {
	return api.Request{
		Method:            method,
		Path:              path,
		Body:              body,
		AuthOverrideToken: overrideToken,
	}
}

// isErr is errors.Is with a guard against unwired sentinels.
func isErr(err, target error) bool {
	return target != nil && errors.Is(err, target)
}

// serverLockedUntil extracts the server-reported lockout deadline, zero when
// the response carried none.
func serverLockedUntil(err error) (until time.Time) {
	if apiErr, ok := apiErrorOf(err); ok {
		until = apiErr.LockedUntil
	}
	return until
}

// apiErrorOf returns the structured adapter error when present.
func apiErrorOf(err error) (*api.Error, bool) {
	var apiErr *api.Error
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// emailRequest validates a bare email field before any network use.
type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// userPayload is the wire shape of the principal across login-class
// responses.
type userPayload struct {
	ID                     json.Number `json:"id"`
	Email                  string      `json:"email"`
	Name                   string      `json:"name"`
	Role                   string      `json:"role"`
	TwoFactorEnabled       bool        `json:"two_factor_enabled"`
	RequiresPasswordChange bool        `json:"requires_password_change"`
}

func (u userPayload) principal() *session.Principal {
	return &session.Principal{
		ID:                 u.ID.String(),
		Email:              u.Email,
		DisplayName:        u.Name,
		Role:               u.Role,
		TwoFactorEnabled:   u.TwoFactorEnabled,
		MustChangePassword: u.RequiresPasswordChange,
	}
}

// authPayload is the wire shape of a token-issuing response.
type authPayload struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        userPayload `json:"user"`
}

func decodeAuthPayload(data json.RawMessage, fallback error) (*authPayload, error) {
	var payload authPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: undecodable auth payload: %v", fallback, err)
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: auth payload carried no access token", fallback)
	}
	return &payload, nil
}
