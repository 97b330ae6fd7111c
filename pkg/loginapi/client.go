package loginapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/aginhq/agin-login/pkg/factor"
	"github.com/aginhq/agin-login/pkg/loginflow"
)

const defaultTimeout = 30 * time.Second

// Client is a typed client for the login endpoints. It keeps a cookie jar so
// the short-lived login-session token issued by the password step is carried
// into the second-factor requests, the same way a browser would.
//
// Client implements loginflow.Client.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The replacement should
// carry a cookie jar or second-factor requests will lack the login session.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoginOptions fetches the primary factors available to a username.
func (c *Client) LoginOptions(ctx context.Context, username string) ([]factor.Kind, error) {
	path := "/api/login/options?username=" + url.QueryEscape(username)
	var resp LoginOptionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return factor.ParseKinds(resp.Options), nil
}

// PasswordLogin submits the password step.
func (c *Client) PasswordLogin(ctx context.Context, username, password string) (loginflow.Result, error) {
	body := map[string]string{"username": username, "password": password}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login/password", body, &resp); err != nil {
		return loginflow.Result{}, err
	}
	return resp.toResult(), nil
}

// TotpLogin submits a one-time code.
func (c *Client) TotpLogin(ctx context.Context, code string) (loginflow.Result, error) {
	body := map[string]string{"code": code}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login/totp", body, &resp); err != nil {
		return loginflow.Result{}, err
	}
	return resp.toResult(), nil
}

// RecoveryCodeLogin submits a recovery code.
func (c *Client) RecoveryCodeLogin(ctx context.Context, code string) (loginflow.Result, error) {
	body := map[string]string{"code": code}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login/recovery-codes", body, &resp); err != nil {
		return loginflow.Result{}, err
	}
	return resp.toResult(), nil
}

// WebAuthnStart fetches the challenge bundle for an authentication ceremony.
func (c *Client) WebAuthnStart(ctx context.Context) (CredentialRequestOptions, error) {
	var resp CredentialRequestOptions
	if err := c.do(ctx, http.MethodPost, "/api/login/webauthn/start", nil, &resp); err != nil {
		return CredentialRequestOptions{}, err
	}
	return resp, nil
}

// WebAuthnFinish submits a signed assertion.
func (c *Client) WebAuthnFinish(ctx context.Context, assertion AssertionPayload) (loginflow.Result, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login/webauthn/finish", assertion, &resp); err != nil {
		return loginflow.Result{}, err
	}
	return resp.toResult(), nil
}

// RegisterWebAuthnStart fetches the challenge bundle for registering a new
// credential. Requires an authenticated session.
func (c *Client) RegisterWebAuthnStart(ctx context.Context) (CredentialCreationOptions, error) {
	var resp CredentialCreationOptions
	if err := c.do(ctx, http.MethodPost, "/api/settings/factors/webauthn/start", nil, &resp); err != nil {
		return CredentialCreationOptions{}, err
	}
	return resp, nil
}

// RegisterWebAuthnFinish submits a newly created credential.
func (c *Client) RegisterWebAuthnFinish(ctx context.Context, attestation AttestationPayload) error {
	return c.do(ctx, http.MethodPost, "/api/settings/factors/webauthn/finish", attestation, nil)
}

// do runs one request. Server-rejected requests come back as
// *loginflow.Error carrying the server's message so the flow can surface it
// inline; anything else is returned raw and treated as a transport failure.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = new(bytes.Buffer)
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp ErrorResponse
		if err := render.DecodeJSON(resp.Body, &errResp); err != nil || errResp.Error == "" {
			slog.Debug("Error response without usable body", "path", path, "status", resp.StatusCode)
			return &loginflow.Error{Type: loginflow.ErrorTypeRequestFailed}
		}
		return &loginflow.Error{Type: loginflow.ErrorTypeRequestFailed, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	if err := render.DecodeJSON(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
