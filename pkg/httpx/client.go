// Package httpx provides the outbound HTTP plumbing shared by SDK clients:
// a rate-limited transport, request-ID injection, and response hygiene
// helpers.
package httpx

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/listora/listora-go/pkg/idx"
)

// LimitConfig defines client-side throttling of outbound requests. The SDK
// throttles itself so that a misbehaving embedding application cannot hammer
// the platform's token endpoints.
type LimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window.
	RequestsPerWindow int
	// Window is the time window for the limit.
	Window time.Duration
	// Burst allows temporary bursts above the steady rate.
	Burst int
}

// OutboundLimit is the default throttle for issuer traffic: generous enough
// that normal refresh cadence never waits, tight enough to smother retry
// storms. Override with LISTORA_OUTBOUND_REQUESTS, LISTORA_OUTBOUND_WINDOW_SEC
// and LISTORA_OUTBOUND_BURST.
var OutboundLimit = LimitConfig{
	RequestsPerWindow: 60,
	Window:            time.Minute,
	Burst:             10,
}

func init() {
	OutboundLimit = ParseLimitFromEnv("OUTBOUND", OutboundLimit)
}

// ParseLimitFromEnv reads limit overrides from environment variables
// following the pattern LISTORA_{prefix}_{field}.
func ParseLimitFromEnv(prefix string, def LimitConfig) LimitConfig {
	cfg := def

	if val := os.Getenv("LISTORA_" + prefix + "_REQUESTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.RequestsPerWindow = n
		}
	}

	if val := os.Getenv("LISTORA_" + prefix + "_WINDOW_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil && sec > 0 {
			cfg.Window = time.Duration(sec) * time.Second
		}
	}

	if val := os.Getenv("LISTORA_" + prefix + "_BURST"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.Burst = n
		}
	}

	return cfg
}

func (c LimitConfig) limiter() *rate.Limiter {
	if c.RequestsPerWindow <= 0 || c.Window <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	burst := c.Burst
	if burst <= 0 {
		burst = c.RequestsPerWindow
	}

	return rate.NewLimiter(rate.Limit(float64(c.RequestsPerWindow)/c.Window.Seconds()), burst)
}

// Transport wraps a base RoundTripper with client-side throttling and
// X-Request-ID injection. A nil Limiter disables throttling.
type Transport struct {
	Base    http.RoundTripper
	Limiter *rate.Limiter
}

// RoundTrip implements http.RoundTripper. It blocks until the limiter
// permits the call (honouring the request context), stamps a request ID if
// the caller did not set one, and delegates to the base transport.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	if req.Header.Get("X-Request-ID") == "" {
		// Per RoundTripper contract the request must not be mutated.
		req = req.Clone(req.Context())
		req.Header.Set("X-Request-ID", idx.New().String())
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(req)
}

// NewClient builds an *http.Client with the given total-request timeout and
// throttle profile.
func NewClient(timeout time.Duration, limit LimitConfig) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &Transport{
			Limiter: limit.limiter(),
		},
	}
}

// DrainAndClose discards any unread response body and closes it so the
// underlying connection can be reused.
func DrainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
