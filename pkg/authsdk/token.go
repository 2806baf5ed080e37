package authsdk

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenLifetime reports when an access token was issued and when it expires.
// The token is parsed without signature verification: the SDK is a consumer
// of the identity service, not a verifier, and only needs the timing claims
// to schedule proactive renewal.
func tokenLifetime(accessToken string) (issuedAt, expiresAt time.Time, err error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	var claims jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing access token: %w", err)
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("access token has no exp claim")
	}

	expiresAt = claims.ExpiresAt.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return issuedAt, expiresAt, nil
}

// tokenTimes resolves the issued/expiry instants for a token response,
// preferring the explicit expires_in field and falling back to the JWT
// claims.
func tokenTimes(resp *TokenResponse, now time.Time) (issuedAt, expiresAt time.Time, err error) {
	if resp.ExpiresIn > 0 {
		return now, now.Add(time.Duration(resp.ExpiresIn) * time.Second), nil
	}

	issuedAt, expiresAt, err = tokenLifetime(resp.AccessToken)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if issuedAt.IsZero() {
		issuedAt = now
	}

	return issuedAt, expiresAt, nil
}
