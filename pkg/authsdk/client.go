package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/listora/listora-go/pkg/httpx"
	"github.com/listora/listora-go/pkg/idx"
	"github.com/listora/listora-go/pkg/slogx"
)

// TokenIssuer is the remote identity endpoint surface the session manager
// depends on. *IssuerClient is the production implementation; tests may
// substitute their own.
type TokenIssuer interface {
	Login(ctx context.Context, email, password string) (*TokenResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// IssuerClient is a thin, stateless wrapper over the platform's identity
// endpoints. It performs no retries and holds no session state; both belong
// to the SessionManager.
type IssuerClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ TokenIssuer = (*IssuerClient)(nil)

// NewIssuerClient creates an identity endpoint client. The underlying HTTP
// client has a 10 second total-request timeout and throttles itself via
// httpx.OutboundLimit.
func NewIssuerClient(baseURL string) *IssuerClient {
	return &IssuerClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: httpx.NewClient(10*time.Second, httpx.OutboundLimit),
	}
}

// Login exchanges email/password credentials for a token pair.
func (c *IssuerClient) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	var tokenResp TokenResponse
	err := c.postJSON(ctx, "/auth/login", LoginRequest{Email: email, Password: password}, &tokenResp)
	if err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// Register creates an account and returns its first token pair.
func (c *IssuerClient) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	var tokenResp TokenResponse
	if err := c.postJSON(ctx, "/auth/register", req, &tokenResp); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *IssuerClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var tokenResp TokenResponse
	err := c.postJSON(ctx, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &tokenResp)
	if err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// Revoke invalidates a refresh token server-side. Callers treat this as best
// effort; the session manager logs and swallows any failure.
func (c *IssuerClient) Revoke(ctx context.Context, refreshToken string) error {
	return c.postJSON(ctx, "/auth/logout", revokeRequest{RefreshToken: refreshToken}, nil)
}

// postJSON executes one POST round trip. Transport failures and non-2xx
// responses come back as classified *AuthError values.
func (c *IssuerClient) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.BaseURL+path,
		bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	reqID := idx.New().String()
	req.Header.Set("X-Request-ID", reqID)
	log := slogx.FromContext(slogx.WithRequestID(ctx, reqID))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Debug("identity endpoint unreachable", "path", path, "err", err)
		return ClassifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassifyTransport(err)
	}

	log.Debug("identity endpoint call", "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Classify(resp.StatusCode, resp.Header, body)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}

	return nil
}
