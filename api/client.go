package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxResponseBytes = 1 << 20

// Signal names the advisory events the adapter raises alongside its error
// returns. Consumers render them (banner, redirect) without blocking the
// calling flow.
type Signal string

const (
	// SignalSessionExpired is raised once per invalidated token.
	SignalSessionExpired Signal = "session_expired"
	// SignalSystemNotInitialized routes consumers to the bootstrap flow.
	SignalSystemNotInitialized Signal = "system_not_initialized"
	// SignalRateLimited is a non-fatal advisory.
	SignalRateLimited Signal = "rate_limited"
	// SignalAccountLocked reports a server-authoritative lockout.
	SignalAccountLocked Signal = "account_locked"
	// SignalNetworkUnreachable is surfaced as a banner, non-blocking.
	SignalNetworkUnreachable Signal = "network_unreachable"
)

// Request describes one outbound call.
type Request struct {
	Method string
	Path   string
	Body   any

	// AuthOverrideToken replaces the session bearer token for calls scoped
	// to a transient flow credential. An override never triggers session
	// invalidation on 401.
	AuthOverrideToken string
}

// Response is the decoded uniform envelope for successful calls. Data holds
// the endpoint-specific payload for the caller to unmarshal.
type Response struct {
	Success bool
	Message string
	Data    json.RawMessage
}

// Config carries the adapter settings.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Client wraps every outbound call with bearer-token attachment, envelope
// decoding, and reserved-signal classification.
type Client struct {
	base      string
	userAgent string
	http      *http.Client

	tokenSource    func() string
	onUnauthorized func(token string)
	onSignal       func(Signal, *Error)

	mu              sync.Mutex
	lastInvalidated string
}

// NewClient builds an adapter over httpClient. A nil httpClient gets a
// default client with the configured timeout.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("api: base URL required")
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      httpClient,
	}, nil
}

// SetTokenSource registers the provider of the current session token.
// An empty return means no session; the request goes out unauthenticated.
func (c *Client) SetTokenSource(fn func() string) { c.tokenSource = fn }

// OnUnauthorized registers the session invalidation hook. The adapter calls
// it at most once per distinct token, so a burst of in-flight requests
// failing together cannot cascade into repeated clear/redirect cycles.
func (c *Client) OnUnauthorized(fn func(token string)) { c.onUnauthorized = fn }

// OnSignal registers the advisory signal hook.
func (c *Client) OnSignal(fn func(Signal, *Error)) { c.onSignal = fn }

// Do executes one call. On failure it returns *Error; errors.Is against the
// package sentinels identifies the reserved signals, and everything else is
// a plain request failure for the calling flow to classify.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("api: encoding request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.base+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("api: building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	sessionToken := ""
	token := req.AuthOverrideToken
	if token == "" && c.tokenSource != nil {
		sessionToken = c.tokenSource()
		token = sessionToken
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		apiErr := &Error{Message: err.Error(), category: ErrNetworkUnreachable}
		c.signal(SignalNetworkUnreachable, apiErr)
		return nil, apiErr
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		apiErr := &Error{Status: httpResp.StatusCode, Message: err.Error(), category: ErrNetworkUnreachable}
		c.signal(SignalNetworkUnreachable, apiErr)
		return nil, apiErr
	}

	env := decodeEnvelope(raw)

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		data := env.Data
		if data == nil {
			data = raw
		}
		return &Response{Success: true, Message: env.Message, Data: data}, nil
	}

	apiErr := &Error{
		Status:  httpResp.StatusCode,
		Code:    env.Code,
		Message: env.Message,
	}
	if retry := httpResp.Header.Get("Retry-After"); retry != "" {
		if secs, err := strconv.Atoi(retry); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	if env.LockedUntil != "" {
		if until, err := time.Parse(time.RFC3339, env.LockedUntil); err == nil {
			apiErr.LockedUntil = until
		}
	}

	c.classify(apiErr, sessionToken)
	return nil, apiErr
}

// classify assigns the reserved-signal category and fires hooks. sessionToken
// is non-empty only when the request went out under the session bearer token.
func (c *Client) classify(apiErr *Error, sessionToken string) {
	switch {
	case apiErr.Code == "SYSTEM_NOT_INITIALIZED" || apiErr.Code == "SYSTEM_LOCKED":
		apiErr.category = ErrSystemNotInitialized
		c.signal(SignalSystemNotInitialized, apiErr)
	case apiErr.Status == http.StatusLocked || apiErr.Code == "ACCOUNT_LOCKED":
		apiErr.category = ErrAccountLocked
		c.signal(SignalAccountLocked, apiErr)
	case apiErr.Status == http.StatusTooManyRequests || apiErr.Code == "RATE_LIMIT_EXCEEDED":
		apiErr.category = ErrRateLimited
		c.signal(SignalRateLimited, apiErr)
	case apiErr.Status == http.StatusUnauthorized && sessionToken != "":
		apiErr.category = ErrUnauthorized
		c.invalidateOnce(sessionToken)
		c.signal(SignalSessionExpired, apiErr)
	case apiErr.Status >= 500:
		apiErr.category = ErrServer
	}
}

// invalidateOnce fires the unauthorized hook at most once per token.
func (c *Client) invalidateOnce(token string) {
	c.mu.Lock()
	if token == c.lastInvalidated {
		c.mu.Unlock()
		return
	}
	c.lastInvalidated = token
	c.mu.Unlock()

	if c.onUnauthorized != nil {
		c.onUnauthorized(token)
	}
}

func (c *Client) signal(s Signal, apiErr *Error) {
	if c.onSignal != nil {
		c.onSignal(s, apiErr)
	}
}

// envelope tolerates both the flat response shape and the error shape the
// backend nests under "detail".
type envelope struct {
	Code        string
	Message     string
	Data        json.RawMessage
	LockedUntil string
}

func decodeEnvelope(raw []byte) envelope {
	var flat struct {
		Success     *bool           `json:"success"`
		Error       string          `json:"error"`
		Message     string          `json:"message"`
		Data        json.RawMessage `json:"data"`
		Detail      json.RawMessage `json:"detail"`
		LockedUntil string          `json:"locked_until"`
	}
	if err := json.Unmarshal(raw, &flat); err != nil {
		return envelope{Message: strings.TrimSpace(string(raw))}
	}

	env := envelope{
		Code:        flat.Error,
		Message:     flat.Message,
		Data:        flat.Data,
		LockedUntil: flat.LockedUntil,
	}

	if len(flat.Detail) > 0 {
		var nested struct {
			Error       string `json:"error"`
			Message     string `json:"message"`
			LockedUntil string `json:"locked_until"`
		}
		if err := json.Unmarshal(flat.Detail, &nested); err == nil {
			if env.Code == "" {
				env.Code = nested.Error
			}
			if env.Message == "" {
				env.Message = nested.Message
			}
			if env.LockedUntil == "" {
				env.LockedUntil = nested.LockedUntil
			}
		} else {
			var plain string
			if err := json.Unmarshal(flat.Detail, &plain); err == nil && env.Message == "" {
				env.Message = plain
			}
		}
	}

	return env
}
