package authsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, handler http.Handler) *IssuerClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewIssuerClient(srv.URL + "/") // trailing slash must be tolerated
	return client
}

func TestIssuerClientLogin(t *testing.T) {
	t.Parallel()

	client := newTestIssuer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@b.com", req.Email)
		assert.Equal(t, "secret", req.Password)

		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "at",
			RefreshToken: "rt",
			TokenType:    "Bearer",
			ExpiresIn:    900,
			User:         &UserProfile{ID: "u1", Email: req.Email},
		})
	}))

	resp, err := client.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "at", resp.AccessToken)
	assert.Equal(t, "rt", resp.RefreshToken)
	assert.Equal(t, 900, resp.ExpiresIn)
	require.NotNil(t, resp.User)
	assert.Equal(t, "u1", resp.User.ID)
}

func TestIssuerClientLoginRejected(t *testing.T) {
	t.Parallel()

	client := newTestIssuer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_credentials",
			"error_description": "email or password is incorrect",
		})
	}))

	_, err := client.Login(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)

	ae, ok := AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, CategoryAuthentication, ae.Category)
	assert.Equal(t, "invalid_credentials", ae.Code)
	assert.Equal(t, "email or password is incorrect", ae.Message)
	assert.Equal(t, http.StatusUnauthorized, ae.HTTPStatus)
}

func TestIssuerClientRefresh(t *testing.T) {
	t.Parallel()

	client := newTestIssuer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/refresh", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rt-old", req["refresh_token"])

		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "at-new", RefreshToken: "rt-new", ExpiresIn: 900})
	}))

	resp, err := client.Refresh(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at-new", resp.AccessToken)
	assert.Equal(t, "rt-new", resp.RefreshToken)
}

func TestIssuerClientRevoke(t *testing.T) {
	t.Parallel()

	var gotPath string
	client := newTestIssuer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rt", req["refresh_token"])

		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.Revoke(context.Background(), "rt"))
	assert.Equal(t, "/auth/logout", gotPath)
}

func TestIssuerClientRegister(t *testing.T) {
	t.Parallel()

	client := newTestIssuer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/register", r.URL.Path)

		var req RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "new@b.com", req.Email)
		assert.Equal(t, "Newbie", req.DisplayName)

		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "at",
			RefreshToken: "rt",
			ExpiresIn:    900,
			User:         &UserProfile{ID: "u2", Email: req.Email, DisplayName: req.DisplayName},
		})
	}))

	resp, err := client.Register(context.Background(), RegisterRequest{
		Email:       "new@b.com",
		Password:    "long-enough",
		DisplayName: "Newbie",
	})
	require.NoError(t, err)
	assert.Equal(t, "u2", resp.User.ID)
}

func TestIssuerClientRateLimited(t *testing.T) {
	t.Parallel()

	client := newTestIssuer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.Refresh(context.Background(), "rt")
	require.Error(t, err)

	ae, ok := AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, CategoryRateLimit, ae.Category)
	assert.True(t, ae.Retryable)
	assert.Equal(t, float64(3), ae.RetryAfter.Seconds())
}

func TestIssuerClientTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	client := NewIssuerClient(srv.URL)

	_, err := client.Login(context.Background(), "a@b.com", "secret")
	require.Error(t, err)

	ae, ok := AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, CategoryNetwork, ae.Category)
	assert.True(t, ae.Retryable)
}
