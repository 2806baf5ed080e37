package authsdk

// UserProfile is the profile record the identity endpoints return alongside
// tokens. The SDK treats it as opaque display data.
type UserProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// TokenResponse is the payload returned by the login, register and refresh
// endpoints.
type TokenResponse struct {
	// AccessToken is the short-lived JWT presented as a bearer credential.
	AccessToken string `json:"access_token"`

	// RefreshToken is the longer-lived opaque credential used solely to
	// obtain new access tokens.
	RefreshToken string `json:"refresh_token"`

	// TokenType is "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds. When absent the
	// SDK reads the lifetime from the JWT's registered claims instead.
	ExpiresIn int `json:"expires_in,omitempty"`

	// User is present on login and register responses, absent on refresh.
	User *UserProfile `json:"user,omitempty"`
}

// LoginRequest is the POST /auth/login body.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the POST /auth/register body.
type RegisterRequest struct {
	Email       string `json:"email"        validate:"required,email"`
	Password    string `json:"password"     validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"max=64"`
}

// refreshRequest is the POST /auth/refresh body.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// revokeRequest is the POST /auth/logout body.
type revokeRequest struct {
	RefreshToken string `json:"refresh_token"`
}
